package hub

import (
	"context"
	"sync"
	"time"

	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
)

// Config tunes per-connection behavior.
type Config struct {
	SendBuffer   int           // queued outgoing messages per client, default 64
	PingInterval time.Duration // 0 disables pings
}

// Hub manages all WebSocket client connections.
type Hub struct {
	clients map[string]*Client

	handlers  map[string]types.MessageHandler
	onConnect []func(string)
	onDisconn []func(string)

	// pending holds at most one undelivered broadcast; a newer broadcast
	// replaces it.
	pending chan types.Message
	castMu  sync.Mutex

	cfg      Config
	mu       sync.RWMutex
	logger   zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new Hub instance.
func New(cfg Config, logger zerolog.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Hub{
		clients:  make(map[string]*Client),
		handlers: make(map[string]types.MessageHandler),
		pending:  make(chan types.Message, 1),
		cfg:      cfg,
		logger:   logger.With().Str("component", "hub").Logger(),
		done:     make(chan struct{}),
	}
}

// Run delivers broadcasts until Stop is called. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.pending:
			h.fanOut(msg)
		case <-h.done:
			return
		}
	}
}

// Stop halts the broadcast loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client in StateOpen and runs connection callbacks.
func (h *Hub) Register(c *Client) {
	h.RegisterWithin(c, 0)
}

// RegisterWithin is Register with a cap on connected clients. It returns
// false, registering nothing, when limit > 0 and the hub already holds
// limit clients.
func (h *Hub) RegisterWithin(c *Client, limit int) bool {
	h.mu.Lock()
	if limit > 0 && len(h.clients) >= limit {
		h.mu.Unlock()
		h.logger.Warn().Str("client_id", c.ID).Int("limit", limit).Msg("client refused, hub full")
		return false
	}
	h.clients[c.ID] = c
	callbacks := h.onConnect
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Msg("client registered")

	for _, cb := range callbacks {
		cb(c.ID)
	}
	return true
}

// Unregister closes and removes a client, then runs disconnection
// callbacks. Calling it more than once for the same client is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		h.mu.Unlock()
		c.Close()
		return
	}
	delete(h.clients, c.ID)
	callbacks := h.onDisconn
	h.mu.Unlock()

	prev := c.Close()
	h.logger.Info().
		Str("client_id", c.ID).
		Str("state", prev.String()).
		Msg("client unregistered")

	for _, cb := range callbacks {
		cb(c.ID)
	}
}

// CloseAll unregisters every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// Authenticate runs commit under the client's state transition to
// StateAuthenticated. It returns false if the client is unknown or closed.
func (h *Hub) Authenticate(clientID string, commit func()) bool {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Authenticate(commit)
}

func (h *Hub) dispatch(ctx context.Context, msg types.Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Event]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("event", msg.Event).Str("client_id", msg.ClientID).Msg("no handler")
		h.replyError(msg.ClientID, "unknown_event")
		return
	}
	if err := handler(ctx, msg.ClientID, msg); err != nil {
		h.logger.Warn().Err(err).Str("event", msg.Event).Str("client_id", msg.ClientID).Msg("handler error")
	}
}

func (h *Hub) replyError(clientID, code string) {
	msg, err := types.NewMessage(types.EventError, map[string]string{"error": code})
	if err != nil {
		return
	}
	h.SendToClient(clientID, msg)
}
