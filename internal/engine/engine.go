package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshdevyn/Runix-sub000/internal/driver"
	"github.com/joshdevyn/Runix-sub000/internal/gherkin"
	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/model"
	"github.com/joshdevyn/Runix-sub000/internal/report"
	"github.com/joshdevyn/Runix-sub000/internal/steps"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Resolver is the slice of the driver registry the engine needs: lazy
// resolution per step and best-effort teardown at the end of a run.
type Resolver interface {
	Resolve(ctx context.Context, driverID string) (driver.Driver, error)
	StopAll(ctx context.Context)
}

// Options configures one engine instance.
type Options struct {
	// DefaultDriver is warmed during initialization; all other drivers
	// resolve lazily on first use.
	DefaultDriver string
	// Tags filters scenarios: a scenario runs when its tag set intersects
	// this list (OR semantics). Empty keeps all scenarios.
	Tags []string
	// Parallel fans out matching scenarios concurrently; steps inside each
	// scenario always run sequentially.
	Parallel bool
}

// Engine walks parsed scenarios, routes each step to its owning driver, and
// aggregates structured results. Drivers are shared across concurrent
// scenarios; there is no per-scenario isolation of driver-side state.
type Engine struct {
	opts    Options
	steps   *steps.Registry
	drivers Resolver
	sink    report.Sink
	logger  *logger.Logger
}

// New constructs an engine over explicitly injected registries.
func New(opts Options, stepReg *steps.Registry, drivers Resolver, sink report.Sink, log *logger.Logger) *Engine {
	return &Engine{
		opts:    opts,
		steps:   stepReg,
		drivers: drivers,
		sink:    sink,
		logger:  log,
	}
}

// RunFeature executes one feature file end to end and always produces a
// report, even when individual steps or drivers fail. Only a parse failure
// returns an error without a report.
func (e *Engine) RunFeature(ctx context.Context, path string) (model.RunReport, error) {
	started := time.Now()
	runID := uuid.NewString()

	e.logger.WithField("feature", path).Info("initializing")
	if e.opts.DefaultDriver != "" {
		if _, err := e.drivers.Resolve(ctx, e.opts.DefaultDriver); err != nil {
			// Steps routed to it will fail individually; the run proceeds.
			e.logger.Error(err, "warm default driver")
		}
	}

	feature, err := gherkin.ParseFeature(path)
	if err != nil {
		e.drivers.StopAll(context.WithoutCancel(ctx))
		return model.RunReport{}, err
	}

	scenarios := filterScenarios(feature.Scenarios, e.opts.Tags)
	e.logger.WithFields(map[string]any{"feature": feature.Name, "scenarios": len(scenarios)}).Info("executing")

	var results []model.StepResult
	if e.opts.Parallel && len(scenarios) > 1 {
		perScenario := make([][]model.StepResult, len(scenarios))
		var wg sync.WaitGroup
		for i, sc := range scenarios {
			wg.Add(1)
			go func(i int, sc gherkin.Scenario) {
				defer wg.Done()
				perScenario[i] = e.runScenario(ctx, sc)
			}(i, sc)
		}
		wg.Wait()
		// Merge in scenario submission order.
		for _, scenarioResults := range perScenario {
			results = append(results, scenarioResults...)
		}
	} else {
		for _, sc := range scenarios {
			results = append(results, e.runScenario(ctx, sc)...)
		}
	}

	runReport := model.NewRunReport(runID, feature.Name, path, started, results)

	if e.sink != nil {
		if err := e.sink.Write(runReport); err != nil {
			e.logger.Error(err, "write report")
		}
	}

	e.drivers.StopAll(context.WithoutCancel(ctx))
	return runReport, nil
}

// runScenario executes steps strictly in document order, each waiting for
// the previous step's result. A failed step whose keyword is not a
// continuation keyword stops the remaining steps of the scenario.
func (e *Engine) runScenario(ctx context.Context, sc gherkin.Scenario) []model.StepResult {
	results := make([]model.StepResult, 0, len(sc.Steps))

	for _, step := range sc.Steps {
		if ctx.Err() != nil {
			// Run-level abort: stop issuing new calls.
			break
		}

		res := e.executeStep(ctx, sc, step)
		results = append(results, res)

		if !res.Success && !isContinuationKeyword(step.Keyword) {
			break
		}
	}

	return results
}

// executeStep routes, lazily resolves, and executes one step. Every failure
// mode, routing misses and unexpected panics included, is converted into a
// failed result at this boundary; nothing propagates past one step.
func (e *Engine) executeStep(ctx context.Context, sc gherkin.Scenario, step gherkin.Step) (res model.StepResult) {
	start := time.Now()
	res = model.StepResult{
		Scenario:  sc.Name,
		Keyword:   step.Keyword,
		Step:      step.Text,
		Timestamp: start,
	}
	defer func() {
		if r := recover(); r != nil {
			err := runixerrors.NewStepExecutionError(step.Text, res.Action, fmt.Errorf("panic: %v", r))
			res.Success = false
			res.Error = err
			res.Message = err.Error()
		}
		res.Duration = time.Since(start)
	}()

	match, ok := e.steps.FindMatchingStep(step.Text)
	if !ok {
		return failed(res, runixerrors.NewRoutingError(step.Text))
	}
	res.DriverID = match.DriverID
	res.Action = match.Definition.Action

	// A step already in flight finishes or times out on its own terms; the
	// per-call timeout bounds it. Run-level cancellation only stops new steps
	// from being issued (the gate in runScenario).
	stepCtx := context.WithoutCancel(ctx)

	drv, err := e.drivers.Resolve(stepCtx, match.DriverID)
	if err != nil {
		return failed(res, err)
	}

	data, err := drv.Execute(stepCtx, match.Definition.Action, match.Args(step.Text))
	if err != nil {
		return failed(res, err)
	}

	res.Success = true
	if len(data) > 0 {
		var decoded any
		if err := json.Unmarshal(data, &decoded); err == nil {
			res.Data = decoded
		}
	}
	return res
}

func failed(res model.StepResult, err error) model.StepResult {
	res.Success = false
	res.Error = err
	res.Message = err.Error()
	return res
}

// isContinuationKeyword reports whether a step keyword continues the previous
// step. Failures on continuation keywords do not stop the scenario.
func isContinuationKeyword(keyword string) bool {
	return strings.EqualFold(keyword, "And") || strings.EqualFold(keyword, "But")
}

func filterScenarios(scenarios []gherkin.Scenario, tags []string) []gherkin.Scenario {
	if len(tags) == 0 {
		return scenarios
	}

	var kept []gherkin.Scenario
	for _, sc := range scenarios {
		if intersects(sc.Tags, tags) {
			kept = append(kept, sc)
		}
	}
	return kept
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
