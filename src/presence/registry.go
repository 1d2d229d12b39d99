// Package presence tracks which authenticated principals currently hold a
// live WebSocket connection.
//
// The Registry holds one entry per authenticated connection, keyed by the
// transport's connection id. A user with several tabs open owns several
// entries and is counted once per connection. Every change hands a fresh
// Snapshot to the Broadcaster while the registry lock is held, so the
// broadcaster sees snapshots in the order the changes were committed.
package presence

import (
	"cmp"
	"slices"
	"sync"

	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
)

// Broadcaster pushes a message to every open connection. Implementations
// must not block.
type Broadcaster interface {
	Broadcast(msg types.Message)
}

type entry struct {
	seq  uint64
	user types.PresenceUser
}

// Registry is the in-process authority on who is online.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry // connection id -> entry
	nextSeq uint64

	broadcaster Broadcaster
	logger      zerolog.Logger
}

// NewRegistry creates an empty registry. b may be nil, in which case
// changes are not broadcast.
func NewRegistry(b Broadcaster, logger zerolog.Logger) *Registry {
	return &Registry{
		entries:     make(map[string]entry),
		broadcaster: b,
		logger:      logger.With().Str("component", "presence").Logger(),
	}
}

// OnAuthenticate records connID as belonging to c. A second call for the
// same connection replaces the stored identity and keeps its position.
func (r *Registry) OnAuthenticate(connID string, c types.Claims) {
	user := types.PresenceUser{UserID: c.ID, Username: c.Username, Role: c.Role}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		r.nextSeq++
		e.seq = r.nextSeq
	}
	e.user = user
	r.entries[connID] = e

	r.logger.Info().
		Str("client_id", connID).
		Int64("user_id", c.ID).
		Bool("replaced", ok).
		Int("online", len(r.entries)).
		Msg("connection authenticated")
	r.notifyLocked()
}

// OnDisconnect forgets connID. Unknown ids are ignored and do not broadcast.
func (r *Registry) OnDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		return
	}
	delete(r.entries, connID)

	r.logger.Info().
		Str("client_id", connID).
		Int64("user_id", e.user.UserID).
		Int("online", len(r.entries)).
		Msg("connection left")
	r.notifyLocked()
}

// Count returns the number of authenticated connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// List returns the public projection of every entry in authentication
// order. The slice is owned by the caller.
func (r *Registry) List() []types.PresenceUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

// Snapshot returns count and list taken atomically.
func (r *Registry) Snapshot() types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := r.listLocked()
	return types.Snapshot{Count: len(users), Users: users}
}

func (r *Registry) listLocked() []types.PresenceUser {
	ordered := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		ordered = append(ordered, e)
	}
	slices.SortFunc(ordered, func(a, b entry) int { return cmp.Compare(a.seq, b.seq) })
	users := make([]types.PresenceUser, len(ordered))
	for i, e := range ordered {
		users[i] = e.user
	}
	return users
}

func (r *Registry) notifyLocked() {
	if r.broadcaster == nil {
		return
	}
	users := r.listLocked()
	msg, err := types.NewMessage(types.EventOnlineUsersUpdate, types.Snapshot{Count: len(users), Users: users})
	if err != nil {
		r.logger.Error().Err(err).Msg("encode presence snapshot")
		return
	}
	r.broadcaster.Broadcast(msg)
}
