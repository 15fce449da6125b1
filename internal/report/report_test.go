package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshdevyn/Runix-sub000/internal/model"
)

func sampleReport() model.RunReport {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.NewRunReport("run-1", "File handling", "features/files.feature", started, []model.StepResult{
		{
			Scenario:  "round trip",
			Keyword:   "Given",
			Step:      `I create file "a.txt" with content "hi"`,
			DriverID:  "file",
			Action:    "create_file",
			Success:   true,
			Timestamp: started,
			Duration:  12 * time.Millisecond,
		},
		{
			Scenario:  "round trip",
			Keyword:   "When",
			Step:      `I read file "a.txt"`,
			DriverID:  "file",
			Action:    "read_file",
			Success:   false,
			Message:   "file not found",
			Timestamp: started.Add(12 * time.Millisecond),
			Duration:  3 * time.Millisecond,
		},
	})
}

func TestJSONSinkWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "report.json")
	sink := NewJSONSink(path)

	require.NoError(t, sink.Write(sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded model.RunReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "run-1", decoded.RunID)
	require.Equal(t, 1, decoded.Passed)
	require.Equal(t, 1, decoded.Failed)
	require.Len(t, decoded.Results, 2)
	require.Equal(t, "create_file", decoded.Results[0].Action)
	require.Equal(t, "file not found", decoded.Results[1].Message)
}

func TestSummaryPlain(t *testing.T) {
	t.Parallel()

	out := Summary(sampleReport(), false)
	require.Contains(t, out, "Feature: File handling")
	require.Contains(t, out, "2 steps: 1 passed, 1 failed")
	require.Contains(t, out, `FAIL When I read file "a.txt": file not found`)

	// Passing steps are not listed individually.
	require.NotContains(t, out, "create file")
}

func TestSummaryAllPassing(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.Results = rep.Results[:1]
	rep.Passed, rep.Failed = 1, 0

	out := Summary(rep, false)
	require.Contains(t, out, "1 passed, 0 failed")
	require.NotContains(t, out, "FAIL")
}
