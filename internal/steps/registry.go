package steps

import (
	"regexp"
	"sync"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/protocol"
)

// Match pairs a step's literal text with the driver and definition that own
// it. Matches are ephemeral routing results, never persisted.
type Match struct {
	DriverID   string
	Definition protocol.StepDefinition

	re *regexp.Regexp
}

// Args applies the compiled pattern to the literal step text and returns the
// ordered capture groups, which become the argument list passed to execute.
func (m Match) Args(text string) []string {
	groups := m.re.FindStringSubmatch(text)
	if len(groups) <= 1 {
		return nil
	}
	return groups[1:]
}

type compiledStep struct {
	def protocol.StepDefinition
	re  *regexp.Regexp
}

// Registry is a read-through cache of the step definitions drivers declare
// via introspection. It is an explicitly constructed service; multiple
// registries can coexist in one process.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	steps  map[string][]compiledStep
	logger *logger.Logger
}

// NewRegistry returns an empty step registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		steps:  make(map[string][]compiledStep),
		logger: log,
	}
}

// Register replaces the full step definition set for a driver id. It is
// called once per driver right after a successful initialize+introspect.
// Definitions whose pattern fails to compile are skipped with a warning.
func (r *Registry) Register(driverID string, defs []protocol.StepDefinition) {
	compiled := make([]compiledStep, 0, len(defs))
	for _, def := range defs {
		re, err := CompilePattern(def.Pattern)
		if err != nil {
			r.logger.WithFields(map[string]any{"driver": driverID, "pattern": def.Pattern}).Warn("skipping uncompilable step pattern")
			continue
		}
		compiled = append(compiled, compiledStep{def: def, re: re})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.steps[driverID]; !known {
		r.order = append(r.order, driverID)
	}
	r.steps[driverID] = compiled
}

// FindMatchingStep scans all registered drivers in registration order; the
// first driver/pattern combination that fully matches the literal text wins.
// There is no priority or specificity ranking between overlapping patterns.
func (r *Registry) FindMatchingStep(text string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, driverID := range r.order {
		for _, cs := range r.steps[driverID] {
			if cs.re.MatchString(text) {
				return Match{DriverID: driverID, Definition: cs.def, re: cs.re}, true
			}
		}
	}
	return Match{}, false
}

// Steps returns the definitions registered for a driver in declaration order.
func (r *Registry) Steps(driverID string) []protocol.StepDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compiled, ok := r.steps[driverID]
	if !ok {
		return nil
	}
	defs := make([]protocol.StepDefinition, 0, len(compiled))
	for _, cs := range compiled {
		defs = append(defs, cs.def)
	}
	return defs
}

// Drivers lists driver ids in registration order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
