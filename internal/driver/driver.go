package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joshdevyn/Runix-sub000/internal/protocol"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Driver is the capability surface every automation driver exposes. The one
// concrete implementation is RemoteDriver, which speaks the wire protocol to
// an out-of-process driver.
type Driver interface {
	Capabilities(ctx context.Context) (protocol.Capabilities, error)
	Initialize(ctx context.Context, config map[string]any) error
	Introspect(ctx context.Context) ([]protocol.StepDefinition, error)
	Execute(ctx context.Context, action string, args []string) (json.RawMessage, error)
	Health(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RemoteDriver maps the Driver interface onto correlated protocol calls.
type RemoteDriver struct {
	id     string
	client *protocol.Client
}

// NewRemoteDriver wraps an open protocol client.
func NewRemoteDriver(id string, client *protocol.Client) *RemoteDriver {
	return &RemoteDriver{id: id, client: client}
}

// ID returns the driver id this remote represents.
func (d *RemoteDriver) ID() string {
	return d.id
}

// Capabilities fetches the driver's static metadata.
func (d *RemoteDriver) Capabilities(ctx context.Context) (protocol.Capabilities, error) {
	raw, err := d.client.Call(ctx, protocol.MethodCapabilities, nil)
	if err != nil {
		return protocol.Capabilities{}, err
	}
	var caps protocol.Capabilities
	if err := json.Unmarshal(raw, &caps); err != nil {
		return protocol.Capabilities{}, runixerrors.NewProtocolError(d.id, runixerrors.CodeTransport, fmt.Sprintf("decode capabilities: %v", err), err)
	}
	return caps, nil
}

// Initialize performs the driver's idempotent setup.
func (d *RemoteDriver) Initialize(ctx context.Context, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	_, err := d.client.Call(ctx, protocol.MethodInitialize, protocol.InitializeParams{Config: config})
	return err
}

// Introspect returns the driver's declared step definitions.
func (d *RemoteDriver) Introspect(ctx context.Context) ([]protocol.StepDefinition, error) {
	raw, err := d.client.Call(ctx, protocol.MethodIntrospect, protocol.IntrospectParams{Type: "steps"})
	if err != nil {
		return nil, err
	}
	var result protocol.IntrospectResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, runixerrors.NewProtocolError(d.id, runixerrors.CodeTransport, fmt.Sprintf("decode introspect: %v", err), err)
	}
	return result.Steps, nil
}

// Execute runs one action. A driver-reported success:false payload becomes a
// StepExecutionError; transport and envelope failures surface as ProtocolError.
func (d *RemoteDriver) Execute(ctx context.Context, action string, args []string) (json.RawMessage, error) {
	if args == nil {
		args = []string{}
	}
	raw, err := d.client.Call(ctx, protocol.MethodExecute, protocol.ExecuteParams{Action: action, Args: args})
	if err != nil {
		return nil, err
	}

	var result protocol.ExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, runixerrors.NewProtocolError(d.id, runixerrors.CodeTransport, fmt.Sprintf("decode execute result: %v", err), err)
	}
	if !result.Success {
		message := "action failed"
		if result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
		}
		return nil, runixerrors.NewStepExecutionError("", action, errors.New(message))
	}
	return result.Data, nil
}

// Health probes driver liveness.
func (d *RemoteDriver) Health(ctx context.Context) error {
	_, err := d.client.Call(ctx, protocol.MethodHealth, nil)
	return err
}

// Shutdown asks the driver to terminate itself.
func (d *RemoteDriver) Shutdown(ctx context.Context) error {
	_, err := d.client.Call(ctx, protocol.MethodShutdown, nil)
	return err
}
