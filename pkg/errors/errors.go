package errors

import (
	"fmt"
)

// ParseError represents a feature or YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration or manifest validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DriverStartError indicates a driver process failed to spawn or become reachable.
type DriverStartError struct {
	DriverID string
	ExitCode int
	Stderr   string
	Err      error
}

// NewDriverStartError constructs a DriverStartError for the given driver id.
func NewDriverStartError(driverID string, exitCode int, stderr string, err error) error {
	return &DriverStartError{DriverID: driverID, ExitCode: exitCode, Stderr: stderr, Err: err}
}

func (e *DriverStartError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("driver start error [%s]: %v", e.DriverID, e.Err)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s (stderr: %s)", msg, e.Stderr)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *DriverStartError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Protocol error codes for failures that originate on this side of the wire.
const (
	CodeTransport = -1
	CodeTimeout   = -2
)

// ProtocolError represents transport loss, a call timeout, or an error
// envelope returned by a driver.
type ProtocolError struct {
	DriverID string
	Code     int
	Message  string
	Err      error
}

// NewProtocolError constructs a ProtocolError carrying a wire or transport code.
func NewProtocolError(driverID string, code int, message string, err error) error {
	return &ProtocolError{DriverID: driverID, Code: code, Message: message, Err: err}
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	if e.DriverID != "" {
		return fmt.Sprintf("protocol error [%s] (code %d): %s", e.DriverID, e.Code, e.Message)
	}
	return fmt.Sprintf("protocol error (code %d): %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RoutingError indicates no registered step pattern matches a step's text.
type RoutingError struct {
	StepText string
}

// NewRoutingError constructs a RoutingError for the unmatched step text.
func NewRoutingError(stepText string) error {
	return &RoutingError{StepText: stepText}
}

func (e *RoutingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("routing error: no step definition matches %q", e.StepText)
}

// StepExecutionError represents a runtime failure while executing a step.
type StepExecutionError struct {
	StepText string
	Action   string
	Err      error
}

// NewStepExecutionError constructs a StepExecutionError.
func NewStepExecutionError(stepText, action string, err error) error {
	return &StepExecutionError{StepText: stepText, Action: action, Err: err}
}

func (e *StepExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("step execution error [%s]: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("step execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *StepExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
