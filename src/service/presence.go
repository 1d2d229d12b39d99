package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/hub"
	"github.com/orchestra-mcp/expense/src/presence"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
)

const handshakeTimeout = 5 * time.Second

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (types.Claims, error)
}

// Presence connects the WebSocket hub to the presence registry: it handles
// the authenticate handshake, removes entries on disconnect and answers
// presence queries.
type Presence struct {
	hub      *hub.Hub
	registry *presence.Registry
	auth     Authenticator
	logger   zerolog.Logger
}

// NewPresence creates the presence service. Call Attach once to install its
// hub hooks.
func NewPresence(h *hub.Hub, reg *presence.Registry, a Authenticator, logger zerolog.Logger) *Presence {
	return &Presence{
		hub:      h,
		registry: reg,
		auth:     a,
		logger:   logger.With().Str("component", "presence-service").Logger(),
	}
}

// Attach registers the handshake handler and the connection hooks on the
// hub.
func (p *Presence) Attach() {
	p.hub.RegisterHandler(types.EventAuthenticate, p.handleAuthenticate)
	p.hub.OnConnection(p.onConnect)
	if p.registry != nil {
		p.hub.OnDisconnection(p.registry.OnDisconnect)
	}
}

// OnlineUsers returns the current snapshot to an administrator.
func (p *Presence) OnlineUsers(c types.Claims) (types.Snapshot, error) {
	if err := auth.RequireRole(c, types.RoleAdmin).Err(); err != nil {
		return types.Snapshot{}, err
	}
	if p.registry == nil {
		return types.Snapshot{}, ErrServiceUnavailable
	}
	return p.registry.Snapshot(), nil
}

// Online returns the number of authenticated connections, or 0 when no
// registry is wired.
func (p *Presence) Online() int {
	if p.registry == nil {
		return 0
	}
	return p.registry.Count()
}

// onConnect logs a new, not yet authenticated connection.
func (p *Presence) onConnect(clientID string) {
	p.logger.Debug().
		Str("client_id", clientID).
		Int("connections", p.hub.ClientCount()).
		Int("online", p.Online()).
		Msg("client connected, awaiting authenticate")
}

// Connections reports the open connections split by lifecycle state.
func (p *Presence) Connections() map[string]int {
	counts := map[string]int{
		hub.StateOpen.String():          0,
		hub.StateAuthenticated.String(): 0,
	}
	for _, id := range p.hub.ConnectedClients() {
		if info := p.hub.ClientInfo(id); info != nil {
			counts[info.State]++
		}
	}
	return counts
}

type handshake struct {
	Token string `json:"token"`
}

// handleAuthenticate verifies the token carried by the handshake and, on
// success, moves the connection to authenticated and records it. Identity
// comes from the verified claims only; any identity fields in the message
// body are ignored.
func (p *Presence) handleAuthenticate(ctx context.Context, clientID string, msg types.Message) error {
	var hs handshake
	if err := msg.Decode(&hs); err != nil {
		p.reply(clientID, types.EventError, map[string]string{"error": "bad_payload"})
		return fmt.Errorf("decode handshake: %w", err)
	}

	if p.registry == nil {
		p.reply(clientID, types.EventAuthError, map[string]string{"error": "unavailable"})
		return ErrServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	claims, err := p.auth.Authenticate(ctx, hs.Token)
	if err != nil {
		code := "invalid_token"
		switch {
		case errors.Is(err, auth.ErrUnauthenticated):
			code = "unauthenticated"
		case errors.Is(err, auth.ErrAuthUnavailable):
			code = "unavailable"
		}
		p.reply(clientID, types.EventAuthError, map[string]string{"error": code})
		return err
	}

	ok := p.hub.Authenticate(clientID, func() {
		p.registry.OnAuthenticate(clientID, claims)
	})
	if !ok {
		p.logger.Debug().Str("client_id", clientID).Msg("handshake after close ignored")
		return nil
	}

	p.reply(clientID, types.EventAuthenticated, types.PresenceUser{
		UserID:   claims.ID,
		Username: claims.Username,
		Role:     claims.Role,
	})
	return nil
}

func (p *Presence) reply(clientID, event string, payload any) {
	msg, err := types.NewMessage(event, payload)
	if err != nil {
		p.logger.Error().Err(err).Str("event", event).Msg("encode reply")
		return
	}
	if !p.hub.SendToClient(clientID, msg) {
		p.logger.Debug().Str("client_id", clientID).Str("event", event).Msg("reply not delivered")
	}
}
