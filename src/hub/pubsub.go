package hub

import (
	"github.com/orchestra-mcp/expense/src/types"
)

// Broadcast queues msg for every open connection, authenticated or not. It
// never blocks: if the previous broadcast has not been picked up by Run yet
// it is dropped in favor of msg.
func (h *Hub) Broadcast(msg types.Message) {
	h.castMu.Lock()
	defer h.castMu.Unlock()

	select {
	case stale := <-h.pending:
		h.logger.Debug().Str("event", stale.Event).Msg("superseded undelivered broadcast")
	default:
	}
	h.pending <- msg
}

// fanOut pushes msg to the clients open right now. A client that is closed
// or backed up is skipped; the next broadcast will carry fresher state.
func (h *Hub) fanOut(msg types.Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(msg) {
			h.logger.Warn().Str("client_id", c.ID).Str("event", msg.Event).Msg("send buffer full or closed, dropping")
		}
	}
}

// SendToClient sends a message directly to a specific client.
func (h *Hub) SendToClient(clientID string, msg types.Message) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.trySend(msg)
}
