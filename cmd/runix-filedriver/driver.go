package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joshdevyn/Runix-sub000/internal/protocol"
)

const driverVersion = "1.0.0"

// fileDriver is a reference driver exposing simple file actions. It keeps the
// last read content so an assertion step can compare against it.
type fileDriver struct {
	mu       sync.Mutex
	baseDir  string
	lastRead string
}

func newFileDriver() *fileDriver {
	return &fileDriver{baseDir: "."}
}

func (d *fileDriver) Capabilities() protocol.Capabilities {
	return protocol.Capabilities{
		Name:        "file",
		Version:     driverVersion,
		Description: "Creates, reads, and asserts on plain files",
		SupportedActions: []string{
			"create_file", "read_file", "assert_file_content", "delete_file",
		},
	}
}

func (d *fileDriver) Initialize(ctx context.Context, config map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dir, ok := config["base_dir"].(string); ok && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create base dir: %w", err)
		}
		d.baseDir = dir
	}
	return nil
}

func (d *fileDriver) Steps() []protocol.StepDefinition {
	return []protocol.StepDefinition{
		{
			ID:      "file.create",
			Pattern: `I create file "(filename)" with content "(content)"`,
			Action:  "create_file",
			Parameters: []protocol.Parameter{
				{Name: "filename", Type: "string", Required: true},
				{Name: "content", Type: "string", Required: true},
			},
			Examples: []string{`Given I create file "a.txt" with content "hi"`},
		},
		{
			ID:      "file.read",
			Pattern: `I read file "(filename)"`,
			Action:  "read_file",
			Parameters: []protocol.Parameter{
				{Name: "filename", Type: "string", Required: true},
			},
			Examples: []string{`When I read file "a.txt"`},
		},
		{
			ID:      "file.assert_content",
			Pattern: `the file content should be "(content)"`,
			Action:  "assert_file_content",
			Parameters: []protocol.Parameter{
				{Name: "content", Type: "string", Required: true},
			},
			Examples: []string{`Then the file content should be "hi"`},
		},
		{
			ID:      "file.delete",
			Pattern: `I delete file "(filename)"`,
			Action:  "delete_file",
			Parameters: []protocol.Parameter{
				{Name: "filename", Type: "string", Required: true},
			},
		},
	}
}

func (d *fileDriver) Execute(ctx context.Context, action string, args []string) (any, error) {
	switch action {
	case "create_file":
		if len(args) != 2 {
			return nil, fmt.Errorf("create_file expects 2 args, got %d", len(args))
		}
		path := d.resolve(args[0])
		if err := os.WriteFile(path, []byte(args[1]), 0o644); err != nil {
			return nil, err
		}
		return map[string]any{"path": path}, nil

	case "read_file":
		if len(args) != 1 {
			return nil, fmt.Errorf("read_file expects 1 arg, got %d", len(args))
		}
		data, err := os.ReadFile(d.resolve(args[0]))
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.lastRead = string(data)
		d.mu.Unlock()
		return map[string]any{"content": string(data)}, nil

	case "assert_file_content":
		if len(args) != 1 {
			return nil, fmt.Errorf("assert_file_content expects 1 arg, got %d", len(args))
		}
		d.mu.Lock()
		got := d.lastRead
		d.mu.Unlock()
		if got != args[0] {
			return nil, fmt.Errorf("expected content %q, got %q", args[0], got)
		}
		return map[string]any{"matched": true}, nil

	case "delete_file":
		if len(args) != 1 {
			return nil, fmt.Errorf("delete_file expects 1 arg, got %d", len(args))
		}
		if err := os.Remove(d.resolve(args[0])); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (d *fileDriver) resolve(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.baseDir, name)
}
