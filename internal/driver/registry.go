package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/manifest"
	"github.com/joshdevyn/Runix-sub000/internal/process"
	"github.com/joshdevyn/Runix-sub000/internal/steps"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// ProcessManager is the slice of the process manager the registry needs.
type ProcessManager interface {
	EnsureRunning(ctx context.Context, man manifest.Manifest) (*process.Handle, error)
	Stop(ctx context.Context, driverID string) error
}

type session struct {
	handle *process.Handle
	driver *RemoteDriver
}

// Registry resolves driver ids to usable drivers, starting processes lazily
// on first use and reusing them afterward. It is explicitly constructed and
// passed by reference; there is no process-wide registry state.
type Registry struct {
	store        *manifest.Store
	procs        ProcessManager
	steps        *steps.Registry
	driverConfig map[string]any
	logger       *logger.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	active map[string]*session
}

// NewRegistry composes the manifest store, process manager, and step registry.
// driverConfig is passed to every driver's initialize call.
func NewRegistry(store *manifest.Store, procs ProcessManager, stepReg *steps.Registry, driverConfig map[string]any, log *logger.Logger) *Registry {
	return &Registry{
		store:        store,
		procs:        procs,
		steps:        stepReg,
		driverConfig: driverConfig,
		logger:       log,
		locks:        make(map[string]*sync.Mutex),
		active:       make(map[string]*session),
	}
}

// Resolve returns a ready driver for the id, spawning and initializing the
// process on first use. A restarted process is re-initialized and its step
// definitions re-registered before the driver is handed out.
func (r *Registry) Resolve(ctx context.Context, driverID string) (Driver, error) {
	lock := r.driverLock(driverID)
	lock.Lock()
	defer lock.Unlock()

	man, ok := r.store.Get(driverID)
	if !ok {
		return nil, runixerrors.NewDriverStartError(driverID, -1, "", fmt.Errorf("no manifest for driver id"))
	}

	handle, err := r.procs.EnsureRunning(ctx, man)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	sess := r.active[driverID]
	r.mu.Unlock()
	if sess != nil && sess.handle == handle {
		return sess.driver, nil
	}

	// Fresh handle: initialize, introspect, and publish the step set before
	// the driver serves its first step.
	remote := NewRemoteDriver(driverID, handle.Client)
	if err := remote.Initialize(ctx, r.driverConfig); err != nil {
		return nil, err
	}
	defs, err := remote.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	r.steps.Register(driverID, defs)
	r.logger.WithFields(map[string]any{"driver": driverID, "steps": len(defs)}).Info("driver initialized")

	r.mu.Lock()
	r.active[driverID] = &session{handle: handle, driver: remote}
	r.mu.Unlock()

	return remote, nil
}

// StopAll stops every driver resolved through this registry, best-effort;
// individual stop failures are logged and skipped.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	r.active = make(map[string]*session)
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.procs.Stop(ctx, id); err != nil {
			r.logger.WithField("driver", id).Error(err, "stop driver")
		}
	}
}

func (r *Registry) driverLock(driverID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[driverID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[driverID] = lock
	}
	return lock
}
