package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshdevyn/Runix-sub000/internal/driver"
	"github.com/joshdevyn/Runix-sub000/internal/model"
	"github.com/joshdevyn/Runix-sub000/internal/protocol"
	"github.com/joshdevyn/Runix-sub000/internal/steps"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// fakeDriver executes in-process with scriptable failures, panics, and delays.
type fakeDriver struct {
	mu        sync.Mutex
	executed  []string
	fail      map[string]string
	panics    map[string]bool
	delay     time.Duration
	onExecute func(action string)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fail: map[string]string{}, panics: map[string]bool{}}
}

func (d *fakeDriver) Capabilities(ctx context.Context) (protocol.Capabilities, error) {
	return protocol.Capabilities{Name: "fake", Version: "1.0.0"}, nil
}

func (d *fakeDriver) Initialize(ctx context.Context, config map[string]any) error { return nil }

func (d *fakeDriver) Introspect(ctx context.Context) ([]protocol.StepDefinition, error) {
	return nil, nil
}

func (d *fakeDriver) Execute(ctx context.Context, action string, args []string) (json.RawMessage, error) {
	if d.onExecute != nil {
		d.onExecute(action)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	d.executed = append(d.executed, action)
	reason, fails := d.fail[action]
	shouldPanic := d.panics[action]
	d.mu.Unlock()

	if shouldPanic {
		panic("driver exploded")
	}
	if fails {
		return nil, runixerrors.NewStepExecutionError("", action, errors.New(reason))
	}
	return json.RawMessage(`{"action":"` + action + `"}`), nil
}

func (d *fakeDriver) Health(ctx context.Context) error { return nil }

func (d *fakeDriver) Shutdown(ctx context.Context) error { return nil }

func (d *fakeDriver) actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

// stubResolver resolves driver ids from a fixed map, recording calls.
type stubResolver struct {
	mu       sync.Mutex
	drivers  map[string]driver.Driver
	failIDs  map[string]error
	resolved []string
	stops    int
}

func (r *stubResolver) Resolve(ctx context.Context, driverID string) (driver.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, driverID)
	if err, ok := r.failIDs[driverID]; ok {
		return nil, err
	}
	d, ok := r.drivers[driverID]
	if !ok {
		return nil, runixerrors.NewDriverStartError(driverID, -1, "", errors.New("no manifest for driver id"))
	}
	return d, nil
}

func (r *stubResolver) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

// memorySink captures the report instead of writing it to disk.
type memorySink struct {
	mu     sync.Mutex
	report *model.RunReport
}

func (s *memorySink) Write(r model.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = &r
	return nil
}

func writeFeature(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.feature")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func fileStepDefs() []protocol.StepDefinition {
	return []protocol.StepDefinition{
		{ID: "file.create", Pattern: `I create file "(filename)" with content "(content)"`, Action: "create_file"},
		{ID: "file.read", Pattern: `I read file "(filename)"`, Action: "read_file"},
		{ID: "file.assert", Pattern: `the file content should be "(content)"`, Action: "assert_file_content"},
		{ID: "file.delete", Pattern: `I delete file "(filename)"`, Action: "delete_file"},
	}
}

func newTestEngine(t *testing.T, opts Options, drv driver.Driver) (*Engine, *stubResolver, *memorySink) {
	t.Helper()
	stepReg := steps.NewRegistry(nil)
	stepReg.Register("file", fileStepDefs())
	resolver := &stubResolver{drivers: map[string]driver.Driver{"file": drv}}
	sink := &memorySink{}
	return New(opts, stepReg, resolver, sink, nil), resolver, sink
}

func TestRunFeaturePassing(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: round trip
    Given I create file "a.txt" with content "hi"
    When I read file "a.txt"
    Then the file content should be "hi"
`)

	drv := newFakeDriver()
	eng, resolver, sink := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "files", rep.Feature)
	require.Equal(t, 3, rep.Passed)
	require.Equal(t, 0, rep.Failed)
	require.Len(t, rep.Results, 3)
	require.NotEmpty(t, rep.RunID)

	first := rep.Results[0]
	require.Equal(t, "round trip", first.Scenario)
	require.Equal(t, "file", first.DriverID)
	require.Equal(t, "create_file", first.Action)
	require.True(t, first.Success)
	require.NotNil(t, first.Data)

	require.Equal(t, []string{"create_file", "read_file", "assert_file_content"}, drv.actions())
	require.Equal(t, 1, resolver.stops)
	require.NotNil(t, sink.report)
	require.Equal(t, rep.RunID, sink.report.RunID)
}

func TestRunFeatureShortCircuitsScenario(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: stops after failure
    Given I create file "a.txt" with content "hi"
    When I read file "a.txt"
    Then the file content should be "hi"
`)

	drv := newFakeDriver()
	drv.fail["read_file"] = "file not found"
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	require.Equal(t, 1, rep.Passed)
	require.Equal(t, 1, rep.Failed)
	require.Contains(t, rep.Results[1].Message, "file not found")

	// The Then step was never attempted.
	require.Equal(t, []string{"create_file", "read_file"}, drv.actions())
}

func TestRunFeatureContinuationKeywordsKeepGoing(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: and-but failures do not stop the scenario
    Given I create file "a.txt" with content "hi"
    And I read file "a.txt"
    But I delete file "a.txt"
    Then the file content should be "hi"
`)

	drv := newFakeDriver()
	drv.fail["read_file"] = "transient"
	drv.fail["delete_file"] = "locked"
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 4)
	require.Equal(t, 2, rep.Passed)
	require.Equal(t, 2, rep.Failed)

	// All four steps ran: failures on And/But continue the scenario.
	require.Equal(t, []string{"create_file", "read_file", "delete_file", "assert_file_content"}, drv.actions())
}

func TestRunFeatureUnmatchedStepFailsStep(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: unroutable
    Given I press the big red button
    Then the file content should be "hi"
`)

	drv := newFakeDriver()
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.False(t, rep.Results[0].Success)

	var routingErr *runixerrors.RoutingError
	require.ErrorAs(t, rep.Results[0].Error, &routingErr)
	require.Empty(t, drv.actions())
}

func TestRunFeatureTagFilter(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  @smoke
  Scenario: tagged
    Given I read file "a.txt"

  Scenario: untagged
    Given I delete file "a.txt"
`)

	drv := newFakeDriver()
	eng, _, _ := newTestEngine(t, Options{Tags: []string{"smoke"}}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.Equal(t, "tagged", rep.Results[0].Scenario)
	require.Equal(t, []string{"read_file"}, drv.actions())
}

func TestRunFeatureParallelPreservesReportOrder(t *testing.T) {
	t.Parallel()

	source := `Feature: files

  Scenario: one
    Given I read file "1.txt"

  Scenario: two
    Given I read file "2.txt"

  Scenario: three
    Given I read file "3.txt"
`
	path := writeFeature(t, source)

	drv := newFakeDriver()
	drv.delay = 20 * time.Millisecond
	eng, _, _ := newTestEngine(t, Options{Parallel: true}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)

	// Results are merged in scenario document order regardless of completion order.
	require.Equal(t, "one", rep.Results[0].Scenario)
	require.Equal(t, "two", rep.Results[1].Scenario)
	require.Equal(t, "three", rep.Results[2].Scenario)
	require.Equal(t, 3, rep.Passed)
}

func TestRunFeaturePanicIsIsolatedToStep(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: explodes
    Given I read file "a.txt"

  Scenario: survives
    Given I delete file "b.txt"
`)

	drv := newFakeDriver()
	drv.panics["read_file"] = true
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	require.False(t, rep.Results[0].Success)
	require.Contains(t, rep.Results[0].Message, "panic")
	require.True(t, rep.Results[1].Success)
}

func TestRunFeatureDriverResolveFailureFailsStep(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: driver down
    Given I read file "a.txt"
`)

	stepReg := steps.NewRegistry(nil)
	stepReg.Register("file", fileStepDefs())
	resolver := &stubResolver{
		drivers: map[string]driver.Driver{},
		failIDs: map[string]error{"file": runixerrors.NewDriverStartError("file", 127, "exec: not found", errors.New("spawn failed"))},
	}
	eng := New(Options{}, stepReg, resolver, &memorySink{}, nil)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.False(t, rep.Results[0].Success)

	var startErr *runixerrors.DriverStartError
	require.ErrorAs(t, rep.Results[0].Error, &startErr)
}

func TestRunFeatureWarmsDefaultDriver(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: single
    Given I read file "a.txt"
`)

	drv := newFakeDriver()
	eng, resolver, _ := newTestEngine(t, Options{DefaultDriver: "file"}, drv)

	_, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "file", resolver.resolved[0])
}

func TestRunFeatureWarmFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: single
    Given I read file "a.txt"
`)

	drv := newFakeDriver()
	stepReg := steps.NewRegistry(nil)
	stepReg.Register("file", fileStepDefs())
	resolver := &stubResolver{
		drivers: map[string]driver.Driver{"file": drv},
		failIDs: map[string]error{"browser": errors.New("boom")},
	}
	eng := New(Options{DefaultDriver: "browser"}, stepReg, resolver, &memorySink{}, nil)

	rep, err := eng.RunFeature(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Passed)
}

func TestRunFeatureParseErrorAborts(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, "Feature: first\n  Scenario: s\n    Given x\nFeature: second\n")

	drv := newFakeDriver()
	eng, resolver, sink := newTestEngine(t, Options{}, drv)

	_, err := eng.RunFeature(context.Background(), path)
	require.Error(t, err)

	var parseErr *runixerrors.ParseError
	require.ErrorAs(t, err, &parseErr)

	// Drivers are still torn down, and no report is written.
	require.Equal(t, 1, resolver.stops)
	require.Nil(t, sink.report)
}

func TestRunFeatureInFlightStepCompletesAfterCancel(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: interrupted mid-step
    Given I read file "a.txt"
    When I delete file "a.txt"
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv := newFakeDriver()
	drv.onExecute = func(string) { cancel() }
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(ctx, path)
	require.NoError(t, err)

	// The step in flight when the run was canceled still completed; only the
	// following step was withheld.
	require.Len(t, rep.Results, 1)
	require.True(t, rep.Results[0].Success)
	require.Equal(t, []string{"read_file"}, drv.actions())
}

func TestRunFeatureCanceledContextStopsIssuingSteps(t *testing.T) {
	t.Parallel()

	path := writeFeature(t, `Feature: files

  Scenario: interrupted
    Given I read file "a.txt"
    When I read file "b.txt"
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := newFakeDriver()
	eng, _, _ := newTestEngine(t, Options{}, drv)

	rep, err := eng.RunFeature(ctx, path)
	require.NoError(t, err)
	require.Empty(t, rep.Results)
	require.Empty(t, drv.actions())
}
