package process

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/joshdevyn/Runix-sub000/internal/protocol"
)

// Status describes the lifecycle state of a managed driver process.
type Status string

const (
	StatusStarting     Status = "starting"
	StatusReady        Status = "ready"
	StatusUnresponsive Status = "unresponsive"
	StatusStopped      Status = "stopped"
)

// Handle is the mutable runtime record for one running driver process. The
// manager owns it exclusively; at most one live handle exists per driver id.
type Handle struct {
	DriverID        string
	PID             int
	Host            string
	Port            int
	Status          Status
	StartedAt       time.Time
	LastHeartbeatAt time.Time
	Client          *protocol.Client

	cmd    *exec.Cmd
	exited chan error
	stderr *tailBuffer
}

// URL is the WebSocket endpoint the driver was told to bind.
func (h *Handle) URL() string {
	return fmt.Sprintf("ws://%s:%d/", h.Host, h.Port)
}

// tailBuffer keeps the last few lines written to it, for error reporting.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
