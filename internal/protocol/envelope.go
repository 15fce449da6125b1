package protocol

import (
	"encoding/json"
)

// Envelope types on the wire.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
)

// Methods every driver must answer.
const (
	MethodCapabilities = "capabilities"
	MethodInitialize   = "initialize"
	MethodIntrospect   = "introspect"
	MethodExecute      = "execute"
	MethodHealth       = "health"
	MethodShutdown     = "shutdown"
)

// Environment variables carrying the listen address into a driver process.
const (
	EnvDriverHost = "RUNIX_DRIVER_HOST"
	EnvDriverPort = "RUNIX_DRIVER_PORT"
)

// Request is the wire-level request envelope. ID is caller-chosen and must be
// unique among in-flight calls on a connection; it is the sole correlation key.
type Request struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the wire-level response envelope. Responses may arrive in any
// order relative to their requests.
type Response struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the error half of a response envelope.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Capabilities is the static metadata a driver reports about itself.
type Capabilities struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Description      string   `json:"description,omitempty"`
	SupportedActions []string `json:"supportedActions"`
}

// InitializeParams carries driver setup configuration. Initialize is idempotent.
type InitializeParams struct {
	Config map[string]any `json:"config"`
}

// InitializeResult acknowledges driver setup.
type InitializeResult struct {
	Initialized bool `json:"initialized"`
}

// IntrospectParams selects what to introspect; only "steps" is defined.
type IntrospectParams struct {
	Type string `json:"type,omitempty"`
}

// IntrospectResult returns the driver's declared step definitions.
type IntrospectResult struct {
	Steps []StepDefinition `json:"steps"`
}

// ExecuteParams runs one named action with positional arguments extracted
// from the step text.
type ExecuteParams struct {
	Action string   `json:"action"`
	Args   []string `json:"args"`
}

// ExecuteResult is the outcome of a single action.
type ExecuteResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ExecuteError   `json:"error,omitempty"`
}

// ExecuteError describes an action-level failure reported by the driver.
type ExecuteError struct {
	Message string `json:"message"`
}

// HealthResult reports driver liveness, optionally with diagnostics.
type HealthResult struct {
	Status      string         `json:"status"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

// ShutdownResult acknowledges a shutdown request.
type ShutdownResult struct {
	Shutdown bool `json:"shutdown"`
}

// StepDefinition is declared by a driver via introspection. Pattern is either
// raw regex or the simplified parenthesized placeholder form; Action is the
// method name the driver expects on execute.
type StepDefinition struct {
	ID         string      `json:"id"`
	Pattern    string      `json:"pattern"`
	Action     string      `json:"action"`
	Parameters []Parameter `json:"parameters,omitempty"`
	Examples   []string    `json:"examples,omitempty"`
}

// Parameter documents one placeholder of a step pattern.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}
