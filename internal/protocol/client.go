package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// DefaultCallTimeout bounds how long a single call waits for its correlated
// response before the pending waiter is rejected.
const DefaultCallTimeout = 30 * time.Second

// Client multiplexes correlated request/response calls over one persistent
// connection to a running driver process. Connection loss invalidates all
// pending calls; the client never reconnects on its own.
type Client struct {
	driverID    string
	conn        *websocket.Conn
	callTimeout time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan Response
	closed   bool
	closeErr error
	done     chan struct{}
}

// DialOptions configures a protocol client.
type DialOptions struct {
	DriverID    string
	CallTimeout time.Duration
}

// Dial opens the persistent connection to a driver's WebSocket endpoint and
// starts the reader loop. The caller owns the returned client and must Close it.
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, runixerrors.NewProtocolError(opts.DriverID, runixerrors.CodeTransport, fmt.Sprintf("dial %s: %v", url, err), err)
	}

	c := &Client{
		driverID:    opts.DriverID,
		conn:        conn,
		callTimeout: timeout,
		pending:     make(map[string]chan Response),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call sends one request envelope and waits for the correlated response.
// It fails with a ProtocolError on transport loss, timeout, cancellation, or
// a driver-returned error envelope.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTransport, fmt.Sprintf("encode %s params: %v", method, err), err)
		}
		raw = encoded
	}

	id := uuid.NewString()
	waiter := make(chan Response, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTransport, "connection closed", err)
	}
	c.pending[id] = waiter
	c.mu.Unlock()

	req := Request{ID: id, Type: TypeRequest, Method: method, Params: raw}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.removePending(id)
		return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTransport, fmt.Sprintf("send %s: %v", method, err), err)
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			return nil, runixerrors.NewProtocolError(c.driverID, resp.Error.Code, resp.Error.Message, nil)
		}
		return resp.Result, nil
	case <-timer.C:
		c.removePending(id)
		return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTimeout, fmt.Sprintf("no response to %s within %s", method, c.callTimeout), nil)
	case <-ctx.Done():
		c.removePending(id)
		return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTransport, fmt.Sprintf("%s canceled", method), ctx.Err())
	case <-c.done:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		return nil, runixerrors.NewProtocolError(c.driverID, runixerrors.CodeTransport, "connection lost", err)
	}
}

// Close tears down the connection. Pending calls fail with a transport error.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.fail(fmt.Errorf("client closed"))
	return err
}

func (c *Client) readLoop() {
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		waiter, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			waiter <- resp
		}
	}
}

// fail marks the connection as lost exactly once and releases every waiter.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	c.pending = make(map[string]chan Response)
	close(c.done)
}

func (c *Client) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
