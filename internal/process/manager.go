package process

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/manifest"
	"github.com/joshdevyn/Runix-sub000/internal/protocol"
	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

const stderrTailLines = 20

// Options configures process lifecycle timeouts.
type Options struct {
	// StartupTimeout bounds the wait for a spawned driver to become reachable.
	StartupTimeout time.Duration
	// ShutdownGrace is how long Stop waits after a shutdown request before
	// forcibly terminating the process.
	ShutdownGrace time.Duration
	// CallTimeout is handed to the protocol client opened for each handle.
	CallTimeout time.Duration
	// HealthTimeout bounds individual liveness probes.
	HealthTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 15 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 2 * time.Second
	}
	return o
}

// Manager turns a declarative manifest into a running, reachable driver
// process and tracks one live handle per driver id.
type Manager struct {
	opts   Options
	logger *logger.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	locks   map[string]*sync.Mutex
}

// NewManager returns a manager with no running drivers.
func NewManager(opts Options, log *logger.Logger) *Manager {
	return &Manager{
		opts:    opts.withDefaults(),
		logger:  log,
		handles: make(map[string]*Handle),
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureRunning resolves a manifest to a ready handle, starting the process
// if needed. Concurrent callers for the same driver id serialize on a
// per-driver lock, so exactly one process is spawned. A handle whose process
// has vanished (crash or idle self-exit) is replaced with a fresh start.
func (m *Manager) EnsureRunning(ctx context.Context, man manifest.Manifest) (*Handle, error) {
	lock := m.driverLock(man.ID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	h := m.handles[man.ID]
	m.mu.Unlock()

	if h != nil && h.Status == StatusReady {
		if err := m.probe(ctx, h); err == nil {
			h.LastHeartbeatAt = time.Now()
			return h, nil
		}
		// The driver may have crashed or idle-exited; that is a normal
		// stopped transition, so tear down and start fresh.
		h.Status = StatusUnresponsive
		m.logger.WithField("driver", man.ID).Warn("driver unresponsive, restarting")
		m.teardown(h)
	}

	return m.start(ctx, man)
}

// Stop sends a shutdown request, waits the grace period, then forcibly
// terminates the OS process if still alive. The handle is always removed.
func (m *Manager) Stop(ctx context.Context, driverID string) error {
	lock := m.driverLock(driverID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	h := m.handles[driverID]
	delete(m.handles, driverID)
	m.mu.Unlock()

	if h == nil {
		return nil
	}

	if h.Client != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, m.opts.ShutdownGrace)
		_, err := h.Client.Call(shutdownCtx, protocol.MethodShutdown, nil)
		cancel()
		if err != nil {
			m.logger.WithField("driver", driverID).Debug("shutdown request failed, will terminate process")
		}
		h.Client.Close()
	}

	select {
	case <-h.exited:
	case <-time.After(m.opts.ShutdownGrace):
		if h.cmd != nil && h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil {
				m.logger.WithField("driver", driverID).Error(err, "kill driver process")
			}
			<-h.exited
		}
	}

	h.Status = StatusStopped
	m.logger.WithField("driver", driverID).Info("driver stopped")
	return nil
}

// StopAll stops every live handle, best-effort.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil {
			m.logger.WithField("driver", id).Error(err, "stop driver")
		}
	}
}

// Handle returns the live handle for a driver id, if any.
func (m *Manager) Handle(driverID string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[driverID]
	return h, ok
}

func (m *Manager) driverLock(driverID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[driverID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[driverID] = lock
	}
	return lock
}

func (m *Manager) probe(ctx context.Context, h *Handle) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.HealthTimeout)
	defer cancel()
	_, err := h.Client.Call(probeCtx, protocol.MethodHealth, nil)
	return err
}

// teardown discards a dead or unresponsive handle without the shutdown dance.
func (m *Manager) teardown(h *Handle) {
	if h.Client != nil {
		h.Client.Close()
	}
	if h.cmd != nil && h.cmd.Process != nil {
		select {
		case <-h.exited:
		default:
			h.cmd.Process.Kill()
			<-h.exited
		}
	}
	m.mu.Lock()
	if m.handles[h.DriverID] == h {
		delete(m.handles, h.DriverID)
	}
	m.mu.Unlock()
}

func (m *Manager) start(ctx context.Context, man manifest.Manifest) (*Handle, error) {
	host := "127.0.0.1"
	port := man.Port
	if port == 0 {
		allocated, err := allocatePort(host)
		if err != nil {
			return nil, runixerrors.NewDriverStartError(man.ID, -1, "", err)
		}
		port = allocated
	}

	cmd := exec.Command(man.Command, man.Args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", protocol.EnvDriverHost, host),
		fmt.Sprintf("%s=%d", protocol.EnvDriverPort, port),
	)

	stderr := newTailBuffer(stderrTailLines)
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, runixerrors.NewDriverStartError(man.ID, -1, "", err)
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		return nil, runixerrors.NewDriverStartError(man.ID, -1, "", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			stderr.Append(scanner.Text())
		}
	}()

	h := &Handle{
		DriverID:  man.ID,
		PID:       cmd.Process.Pid,
		Host:      host,
		Port:      port,
		Status:    StatusStarting,
		StartedAt: time.Now(),
		cmd:       cmd,
		exited:    make(chan error, 1),
		stderr:    stderr,
	}
	go func() {
		h.exited <- cmd.Wait()
		close(h.exited)
	}()

	m.logger.WithFields(map[string]any{"driver": man.ID, "pid": h.PID, "port": port}).Info("driver starting")

	client, err := m.awaitReady(ctx, h)
	if err != nil {
		return nil, err
	}

	h.Client = client
	h.Status = StatusReady
	h.LastHeartbeatAt = time.Now()

	m.mu.Lock()
	m.handles[man.ID] = h
	m.mu.Unlock()

	m.logger.WithFields(map[string]any{"driver": man.ID, "pid": h.PID}).Info("driver ready")
	return h, nil
}

// awaitReady polls the driver's endpoint until the first successful health
// call, the startup timeout, or an abnormal process exit. On failure the
// process is terminated and the handle discarded, never cached.
func (m *Manager) awaitReady(ctx context.Context, h *Handle) (*protocol.Client, error) {
	deadline := time.Now().Add(m.opts.StartupTimeout)

	for {
		select {
		case <-h.exited:
			exitCode := -1
			if h.cmd.ProcessState != nil {
				exitCode = h.cmd.ProcessState.ExitCode()
			}
			return nil, runixerrors.NewDriverStartError(h.DriverID, exitCode, h.stderr.String(),
				fmt.Errorf("driver process exited during startup"))
		case <-ctx.Done():
			m.teardownStarting(h)
			return nil, runixerrors.NewDriverStartError(h.DriverID, -1, h.stderr.String(), ctx.Err())
		default:
		}

		if time.Now().After(deadline) {
			m.teardownStarting(h)
			return nil, runixerrors.NewDriverStartError(h.DriverID, -1, h.stderr.String(),
				fmt.Errorf("driver not reachable within %s", m.opts.StartupTimeout))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.opts.HealthTimeout)
		client, err := protocol.Dial(attemptCtx, h.URL(), protocol.DialOptions{
			DriverID:    h.DriverID,
			CallTimeout: m.opts.CallTimeout,
		})
		if err == nil {
			_, err = client.Call(attemptCtx, protocol.MethodHealth, nil)
			if err == nil {
				cancel()
				return client, nil
			}
			client.Close()
		}
		cancel()

		time.Sleep(100 * time.Millisecond)
	}
}

func (m *Manager) teardownStarting(h *Handle) {
	if h.cmd != nil && h.cmd.Process != nil {
		h.cmd.Process.Kill()
		<-h.exited
	}
}

func allocatePort(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port, nil
}
