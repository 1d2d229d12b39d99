package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/orchestra-mcp/expense/src/types"
)

// State is the lifecycle position of a connection.
type State int

const (
	// StateOpen is a live connection that has not authenticated.
	StateOpen State = iota

	// StateAuthenticated is a live connection that completed the
	// authenticate handshake at least once.
	StateAuthenticated

	// StateClosed is terminal.
	StateClosed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID          string
	conn        types.Conn
	hub         *Hub
	send        chan types.Message
	connectedAt time.Time

	// stateMu serializes handshake commits against Close, so an entry is
	// never committed for a connection that is already closed.
	stateMu sync.Mutex
	state   State

	mu     sync.RWMutex
	done   chan struct{}
	closed bool
}

// NewClient creates a new WebSocket client wrapper in StateOpen.
func NewClient(id string, conn types.Conn, h *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		hub:         h,
		send:        make(chan types.Message, h.cfg.SendBuffer),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	return types.ClientInfo{
		ID:          c.ID,
		ConnectedAt: c.connectedAt,
		State:       c.State().String(),
	}
}

// Authenticate moves the client to StateAuthenticated and runs commit while
// the transition is held. It returns false without calling commit when the
// client is already closed. Re-authentication is allowed.
func (c *Client) Authenticate(commit func()) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.state = StateAuthenticated
	if commit != nil {
		commit()
	}
	return true
}

// ReadPump reads messages from the WebSocket and dispatches them on this
// goroutine, so a connection's messages are handled in order and always
// before its own unregistration.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		var msg types.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if errors.Is(err, types.ErrMalformedFrame) {
				c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("malformed frame")
				c.hub.replyError(c.ID, "bad_payload")
				continue
			}
			return
		}
		msg.ClientID = c.ID
		msg.Timestamp = time.Now()
		c.hub.dispatch(ctx, msg)
	}
}

// WritePump writes messages from the send channel to the WebSocket and
// pings the peer on the hub's ping interval.
func (c *Client) WritePump() {
	defer c.conn.Close()

	var tick <-chan time.Time
	if c.hub.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.hub.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-tick:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) trySend(msg types.Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close moves the client to StateClosed and stops its pumps. It returns the
// state the client was in before the call.
func (c *Client) Close() State {
	c.stateMu.Lock()
	prev := c.state
	c.state = StateClosed
	c.stateMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.send)
	}
	return prev
}
