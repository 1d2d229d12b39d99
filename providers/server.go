package providers

import (
	"context"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/expense/config"
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/hub"
	"github.com/orchestra-mcp/expense/src/presence"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Deps are the storage backends the server runs on. A nil store leaves the
// routes that need it answering "Service not initialized"; a nil revocation
// list disables logout.
type Deps struct {
	Users       service.UserStore
	Expenses    service.ExpenseStore
	Revocations auth.RevocationList

	// HashCost overrides the bcrypt cost when non-zero.
	HashCost int
}

// Server wires the hub, the presence registry and the REST services behind
// one fasthttp handler.
type Server struct {
	active   bool
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	logger   zerolog.Logger
	hub      *hub.Hub
	registry *presence.Registry
	verifier *auth.Verifier
	presence *service.Presence
	users    *service.Users
	expenses *service.Expenses
	app      *fiber.App
	upgrader websocket.FastHTTPUpgrader
}

// NewServer builds the server. Call Activate before serving.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		hub: hub.New(hub.Config{
			SendBuffer:   cfg.Socket.SendBuffer,
			PingInterval: cfg.Socket.PingInterval,
		}, logger),
	}
	s.registry = presence.NewRegistry(s.hub, logger)

	var opts []auth.Option
	if deps.Revocations != nil {
		opts = append(opts, auth.WithRevocationList(deps.Revocations))
	}
	s.verifier = auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.TTL, logger, opts...)

	s.presence = service.NewPresence(s.hub, s.registry, s.verifier, logger)
	s.presence.Attach()
	if deps.Users != nil {
		var opts []service.UsersOption
		if deps.HashCost != 0 {
			opts = append(opts, service.WithHashCost(deps.HashCost))
		}
		s.users = service.NewUsers(deps.Users, s.verifier, logger, opts...)
	}
	if deps.Expenses != nil {
		s.expenses = service.NewExpenses(deps.Expenses, logger)
	}

	s.upgrader = websocket.FastHTTPUpgrader{
		ReadBufferSize:  cfg.Socket.ReadBufferSize,
		WriteBufferSize: cfg.Socket.WriteBufferSize,
		CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
	}
	s.app = s.newApp()
	return s
}

// Activate starts the broadcast loop. ctx bounds every connection.
func (s *Server) Activate(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run()
	s.active = true
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("server activated")
	return nil
}

// Deactivate closes every connection and stops the broadcast loop.
func (s *Server) Deactivate() error {
	if !s.active {
		return nil
	}
	s.hub.CloseAll()
	s.hub.Stop()
	s.cancel()
	s.active = false
	return nil
}

// IsActive reports whether Activate has been called.
func (s *Server) IsActive() bool { return s.active }

// App returns the fiber application serving the REST routes.
func (s *Server) App() *fiber.App { return s.app }

// Handler returns the root fasthttp handler: WebSocket upgrades on /ws and
// everything else through fiber.
func (s *Server) Handler() fasthttp.RequestHandler {
	rest := s.app.Handler()
	ws := s.FastHTTPHandler()
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == wsPath {
			ws(ctx)
			return
		}
		rest(ctx)
	}
}

// InitRevocations connects the Redis revocation list. If Redis is not
// reachable it returns nil and the server runs without logout support.
func InitRevocations(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) *auth.RedisRevocationList {
	rl := auth.NewRedisRevocationList(auth.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	}, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rl.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("redis_addr", cfg.Addr).Msg("redis unavailable, token revocation disabled")
		_ = rl.Close()
		return nil
	}
	logger.Info().Str("redis_addr", cfg.Addr).Msg("redis revocation list connected")
	return rl
}
