// Package relay turns fire-and-forget messages to the remote executor into
// awaitable calls correlated by id over one shared websocket connection.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vinayprograms/agentkit/logging"
)

// DefaultConnectTimeout bounds the dial plus the wait for the ready ack.
const DefaultConnectTimeout = 10 * time.Second

// Config holds relay client configuration.
type Config struct {
	URL            string        // websocket endpoint of the remote executor
	Token          string        // shared secret, sent as a connection parameter
	ConnectTimeout time.Duration // bound on dial + open acknowledgement
}

type callResult struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	id       string
	action   string
	issuedAt time.Time
	ch       chan callResult // buffered; resolved or failed exactly once
}

// Client is the correlation channel. One shared connection is lazily
// established on first use; multiple calls may be in flight concurrently,
// each independently timed and resolved by correlation id.
type Client struct {
	cfg    Config
	logger *logging.Logger
	dial   func(url string) (*websocket.Conn, error)

	mu      sync.Mutex // guards conn and pending
	conn    *websocket.Conn
	pending map[string]*pendingCall

	writeMu sync.Mutex // serializes frame writes on the shared connection
}

// New creates a relay client. The connection is not opened until the first
// Call.
func New(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	c := &Client{
		cfg:     cfg,
		logger:  logging.New().WithComponent("relay"),
		pending: make(map[string]*pendingCall),
	}
	c.dial = func(url string) (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
		conn, _, err := dialer.Dial(url, nil)
		return conn, err
	}
	return c
}

// Call dispatches an action and waits for the correlated reply. A reply
// that misses the timeout rejects exactly once with a TimeoutError; the
// eventual late reply is dropped. Transport failures reject every in-flight
// call; the client does not reconnect on its own.
func (c *Client) Call(ctx context.Context, action string, params map[string]interface{}, timeout time.Duration) (json.RawMessage, error) {
	conn, err := c.ensureConnected()
	if err != nil {
		return nil, err
	}

	pc := &pendingCall{
		id:       uuid.New().String(),
		action:   action,
		issuedAt: time.Now(),
		ch:       make(chan callResult, 1),
	}
	c.mu.Lock()
	c.pending[pc.id] = pc
	c.mu.Unlock()

	if err := c.write(conn, request{ID: pc.id, Action: action, Params: params}); err != nil {
		c.discard(pc.id)
		c.teardown(conn, err)
		return nil, &TransportError{Op: "write", Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pc.ch:
		return res.result, res.err
	case <-timer.C:
		if c.discard(pc.id) {
			c.logger.Warn("call timed out", map[string]interface{}{
				"action":  action,
				"id":      pc.id,
				"timeout": timeout.String(),
			})
			return nil, &TimeoutError{Action: action, Timeout: timeout}
		}
		// Reply won the race with the timer; it is already on the channel.
		res := <-pc.ch
		return res.result, res.err
	case <-ctx.Done():
		if c.discard(pc.id) {
			return nil, ctx.Err()
		}
		res := <-pc.ch
		return res.result, res.err
	}
}

// Connected reports whether the shared connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close shuts the connection and fails any in-flight calls.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.teardown(conn, ErrConnectionLost)
	return conn.Close()
}

// ensureConnected lazily opens the shared connection: dial with the token as
// a connection parameter, then wait (bounded) for the ready acknowledgement.
// Concurrent first callers serialize on the handshake.
func (c *Client) ensureConnected() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	url := c.cfg.URL
	if c.cfg.Token != "" {
		sep := "?"
		for _, r := range url {
			if r == '?' {
				sep = "&"
				break
			}
		}
		url += sep + "token=" + c.cfg.Token
	}

	conn, err := c.dial(url)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	// The remote side closes immediately when the token is rejected, so a
	// failed read here is an authentication failure, not a plain transport
	// hiccup.
	conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	var ack reply
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "handshake", Err: ErrAuthRejected}
	}
	if ack.Event != eventReady {
		conn.Close()
		return nil, &TransportError{Op: "handshake", Err: ErrAuthRejected}
	}
	conn.SetReadDeadline(time.Time{})

	c.conn = conn
	go c.readLoop(conn)

	c.logger.Info("connected to remote executor", map[string]interface{}{
		"url": c.cfg.URL,
	})
	return conn, nil
}

func (c *Client) write(conn *websocket.Conn, req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(req)
}

// readLoop dispatches inbound replies to their pending calls until the
// connection dies, then fails everything still in flight.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var rep reply
		if err := conn.ReadJSON(&rep); err != nil {
			c.teardown(conn, err)
			return
		}
		if rep.Event != "" {
			c.logger.Debug("ignoring event frame", map[string]interface{}{"event": rep.Event})
			continue
		}
		c.resolve(rep)
	}
}

// resolve routes a reply to its pending call. Unknown or already-discarded
// ids are dropped without touching any other call.
func (c *Client) resolve(rep reply) {
	c.mu.Lock()
	pc, ok := c.pending[rep.ID]
	if ok {
		delete(c.pending, rep.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("dropping reply with no pending call", map[string]interface{}{"id": rep.ID})
		return
	}
	if rep.Success {
		pc.ch <- callResult{result: rep.Result}
		return
	}
	pc.ch <- callResult{err: &RemoteError{Action: pc.action, Message: rep.Error}}
}

// discard removes a pending call, reporting whether it was still registered.
func (c *Client) discard(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// teardown drops the connection (if it is still the current one) and fails
// every pending call with a connection-lost error.
func (c *Client) teardown(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	failed := c.pending
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	conn.Close()
	if len(failed) > 0 {
		c.logger.Warn("connection lost with calls in flight", map[string]interface{}{
			"in_flight": len(failed),
			"cause":     cause.Error(),
		})
	}
	for _, pc := range failed {
		pc.ch <- callResult{err: &TransportError{Op: pc.action, Err: ErrConnectionLost}}
	}
}
