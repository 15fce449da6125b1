package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joshdevyn/Runix-sub000/internal/model"
)

// Sink receives the full result list once, after all scenarios complete.
// Writing the report has no effect on run control flow.
type Sink interface {
	Write(report model.RunReport) error
}

// JSONSink persists the run report as an indented JSON document.
type JSONSink struct {
	Path string
}

// NewJSONSink writes reports to the given path, creating parent directories.
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{Path: path}
}

// Write implements Sink.
func (s *JSONSink) Write(report model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
