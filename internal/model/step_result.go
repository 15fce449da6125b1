package model

import (
	"time"
)

// StepResult captures the outcome of executing a single scenario step.
// A result is created once per executed step and never mutated afterwards.
type StepResult struct {
	Scenario  string        `json:"scenario"`
	Keyword   string        `json:"keyword"`
	Step      string        `json:"step"`
	DriverID  string        `json:"driver_id,omitempty"`
	Action    string        `json:"action,omitempty"`
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     error         `json:"-"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// RunReport aggregates the results of one feature run.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Feature   string        `json:"feature"`
	Path      string        `json:"path"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Results   []StepResult  `json:"results"`
}

// NewRunReport assembles a report from raw step results, deriving counts.
func NewRunReport(runID, feature, path string, startedAt time.Time, results []StepResult) RunReport {
	report := RunReport{
		RunID:     runID,
		Feature:   feature,
		Path:      path,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Results:   results,
	}
	for _, res := range results {
		if res.Success {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}
