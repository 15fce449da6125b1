package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
)

// Handler implements the driver side of the wire protocol. Execute failures
// returned as errors become success:false execute results, not error envelopes.
type Handler interface {
	Capabilities() Capabilities
	Initialize(ctx context.Context, config map[string]any) error
	Steps() []StepDefinition
	Execute(ctx context.Context, action string, args []string) (any, error)
}

// ServerOptions configures a driver-side protocol server.
type ServerOptions struct {
	Host string
	Port int
	// IdleTimeout is the silence period after which the driver terminates
	// itself. Zero disables idle self-shutdown.
	IdleTimeout time.Duration
	Logger      *logger.Logger
}

// Server accepts connections from the runner and dispatches protocol methods
// to a Handler. It tracks time since last contact and stops on its own after
// the configured idle timeout; the runner treats that as a normal stop.
type Server struct {
	handler  Handler
	opts     ServerOptions
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu          sync.Mutex
	lastContact time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewServer wires a handler into a protocol server.
func NewServer(handler Handler, opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	return &Server{
		handler:     handler,
		opts:        opts,
		lastContact: time.Now(),
		stopped:     make(chan struct{}),
	}
}

// AddrFromEnv reads the listen address the process manager injected at spawn time.
func AddrFromEnv() (string, int, error) {
	host := os.Getenv(EnvDriverHost)
	if host == "" {
		host = "127.0.0.1"
	}
	portStr := os.Getenv(EnvDriverPort)
	if portStr == "" {
		return "", 0, fmt.Errorf("%s is not set", EnvDriverPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid %s %q: %w", EnvDriverPort, portStr, err)
	}
	return host, port, nil
}

// ListenAndServe binds the address and serves until the context is canceled,
// Stop is called, or the idle timeout elapses. A clean stop returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.httpSrv = &http.Server{Handler: s.Handler()}

	if s.opts.IdleTimeout > 0 {
		go s.idleWatchdog(ctx)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopped:
		}
		s.httpSrv.Close()
	}()

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the WebSocket endpoint, mainly for embedding in test servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	return mux
}

// Stop terminates the server. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

func (s *Server) idleWatchdog(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastContact)
			s.mu.Unlock()
			if idle > s.opts.IdleTimeout {
				s.log().Info("idle timeout reached, shutting down")
				s.Stop()
				return
			}
		}
	}
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Error(err, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.touch()

	var writeMu sync.Mutex
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		s.touch()

		// Each request dispatches on its own goroutine so slow actions do
		// not block other in-flight calls on the same connection.
		go s.dispatch(r.Context(), conn, &writeMu, req)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, req Request) {
	resp := Response{ID: req.ID, Type: TypeResponse}

	result, errDetail := s.invoke(ctx, req)
	if errDetail != nil {
		resp.Error = errDetail
	} else {
		encoded, err := json.Marshal(result)
		if err != nil {
			resp.Error = &ErrorDetail{Code: 500, Message: fmt.Sprintf("encode %s result: %v", req.Method, err)}
		} else {
			resp.Result = encoded
		}
	}

	writeMu.Lock()
	err := conn.WriteJSON(resp)
	writeMu.Unlock()
	if err != nil {
		s.log().Error(err, "write response failed")
	}

	if req.Method == MethodShutdown && resp.Error == nil {
		s.Stop()
	}
}

func (s *Server) invoke(ctx context.Context, req Request) (any, *ErrorDetail) {
	switch req.Method {
	case MethodCapabilities:
		return s.handler.Capabilities(), nil

	case MethodInitialize:
		var params InitializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, &ErrorDetail{Code: 400, Message: fmt.Sprintf("invalid initialize params: %v", err)}
			}
		}
		if err := s.handler.Initialize(ctx, params.Config); err != nil {
			return nil, &ErrorDetail{Code: 500, Message: err.Error()}
		}
		return InitializeResult{Initialized: true}, nil

	case MethodIntrospect:
		steps := s.handler.Steps()
		if steps == nil {
			steps = []StepDefinition{}
		}
		return IntrospectResult{Steps: steps}, nil

	case MethodExecute:
		var params ExecuteParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &ErrorDetail{Code: 400, Message: fmt.Sprintf("invalid execute params: %v", err)}
		}
		data, err := s.handler.Execute(ctx, params.Action, params.Args)
		if err != nil {
			return ExecuteResult{Success: false, Error: &ExecuteError{Message: err.Error()}}, nil
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, &ErrorDetail{Code: 500, Message: fmt.Sprintf("encode execute data: %v", err)}
		}
		return ExecuteResult{Success: true, Data: encoded}, nil

	case MethodHealth:
		return HealthResult{Status: "ok"}, nil

	case MethodShutdown:
		return ShutdownResult{Shutdown: true}, nil

	default:
		return nil, &ErrorDetail{Code: 404, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func (s *Server) touch() {
	s.mu.Lock()
	s.lastContact = time.Now()
	s.mu.Unlock()
}

func (s *Server) log() *logger.Logger {
	return s.opts.Logger
}
