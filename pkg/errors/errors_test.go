package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorFormatting(t *testing.T) {
	t.Parallel()

	root := fmt.Errorf("unexpected token")
	err := NewParseError("features/login.feature", 12, root)

	require.EqualError(t, err, "parse error: features/login.feature:12: unexpected token")
	require.ErrorIs(t, err, root)

	noLine := NewParseError("features/login.feature", 0, root)
	require.EqualError(t, noLine, "parse error: features/login.feature: unexpected token")
}

func TestValidationErrorFormatting(t *testing.T) {
	t.Parallel()

	err := NewValidationError("manifest.id", "must match ^[a-z0-9_-]+$", nil)
	require.EqualError(t, err, "validation error: manifest.id: must match ^[a-z0-9_-]+$")

	bare := NewValidationError("", "empty driver directory", nil)
	require.EqualError(t, bare, "validation error: empty driver directory")
}

func TestDriverStartErrorCarriesStderr(t *testing.T) {
	t.Parallel()

	root := fmt.Errorf("exit status 1")
	err := NewDriverStartError("browser", 1, "bind: address already in use", root)

	require.Contains(t, err.Error(), "driver start error [browser]")
	require.Contains(t, err.Error(), "bind: address already in use")
	require.ErrorIs(t, err, root)

	var startErr *DriverStartError
	require.ErrorAs(t, err, &startErr)
	require.Equal(t, 1, startErr.ExitCode)
}

func TestProtocolErrorCodes(t *testing.T) {
	t.Parallel()

	timeout := NewProtocolError("vision", CodeTimeout, "call timed out after 30s", nil)
	require.EqualError(t, timeout, "protocol error [vision] (code -2): call timed out after 30s")

	remote := NewProtocolError("", 500, "internal driver failure", nil)
	require.EqualError(t, remote, "protocol error (code 500): internal driver failure")
}

func TestRoutingError(t *testing.T) {
	t.Parallel()

	err := NewRoutingError("I press the red button")
	require.EqualError(t, err, `routing error: no step definition matches "I press the red button"`)
}

func TestStepExecutionErrorUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("file not found")
	err := NewStepExecutionError(`I read file "a.txt"`, "read_file", root)

	require.EqualError(t, err, "step execution error [read_file]: file not found")
	require.ErrorIs(t, err, root)
}
