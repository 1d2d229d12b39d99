package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/expense/config"
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/hub"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/valyala/fasthttp"
)

const wsPath = "/ws"

type claimsKey struct{}

type tokenKey struct{}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "expense",
		ErrorHandler: errorHandler(s.logger),
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "API is running!"})
	})
	app.Get("/ws/info", s.handleInfo)

	api := app.Group("/api")

	users := api.Group("/users")
	users.Post("/register", s.handleRegister)
	users.Post("/login", s.handleLogin)
	// Trailing arguments are middleware and run before the handler.
	users.Get("/online", s.handleOnline, s.requireAuth)
	users.Post("/promote", s.handlePromote, s.requireAuth)
	users.Post("/logout", s.handleLogout, s.requireAuth)

	expenses := api.Group("/expenses", s.requireAuth)
	expenses.Get("/user/:userId", s.handleUserExpenses)
	expenses.Get("/all", s.handleAllExpenses)
	expenses.Post("/", s.handleCreateExpense)
	expenses.Post("/bulk", s.handleCreateBulk)
	expenses.Delete("/bulk", s.handleDeleteBulk)
	expenses.Delete("/:id", s.handleDeleteExpense)

	return app
}

// requireAuth verifies the bearer token and stores its claims for the
// handlers that follow.
func (s *Server) requireAuth(c fiber.Ctx) error {
	raw := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	claims, err := s.verifier.Authenticate(c.Context(), raw)
	if err != nil {
		return err
	}
	c.Locals(claimsKey{}, claims)
	c.Locals(tokenKey{}, raw)
	return c.Next()
}

func callerOf(c fiber.Ctx) (types.Claims, error) {
	claims, ok := c.Locals(claimsKey{}).(types.Claims)
	if !ok {
		return types.Claims{}, auth.ErrUnauthenticated
	}
	return claims, nil
}

func decodeBody(c fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", service.ErrValidation)
	}
	return nil
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket":   true,
		"endpoint":    wsPath,
		"clients":     s.hub.ClientCount(),
		"online":      s.presence.Online(),
		"connections": s.presence.Connections(),
	})
}

func (s *Server) handleOnline(c fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	snap, err := s.presence.OnlineUsers(caller)
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

func (s *Server) handleRegister(c fiber.Ctx) error {
	if s.users == nil {
		return service.ErrServiceUnavailable
	}
	var in types.NewUser
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	user, token, err := s.users.Register(c.Context(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

func (s *Server) handleLogin(c fiber.Ctx) error {
	if s.users == nil {
		return service.ErrServiceUnavailable
	}
	var in types.Credentials
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	user, token, err := s.users.Login(c.Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

func (s *Server) handlePromote(c fiber.Ctx) error {
	if s.users == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	user, err := s.users.Promote(c.Context(), caller, in.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User promoted to admin successfully",
		"user":    user,
	})
}

func (s *Server) handleLogout(c fiber.Ctx) error {
	if s.users == nil {
		return service.ErrServiceUnavailable
	}
	raw, _ := c.Locals(tokenKey{}).(string)
	if err := s.users.Logout(c.Context(), raw); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (s *Server) handleUserExpenses(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid user ID")
	}
	list, err := s.expenses.ForUser(c.Context(), caller, userID)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(list))
}

func (s *Server) handleAllExpenses(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	list, err := s.expenses.All(c.Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(list))
}

func (s *Server) handleCreateExpense(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var in types.ExpenseInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	e, err := s.expenses.Create(c.Context(), caller, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

func (s *Server) handleCreateBulk(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var in struct {
		Expenses []types.ExpenseInput `json:"expenses"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	created, err := s.expenses.CreateBulk(c.Context(), caller, in.Expenses)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  fmt.Sprintf("Successfully created %d expenses", len(created)),
		"expenses": created,
	})
}

func (s *Server) handleDeleteBulk(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var in struct {
		ExpenseIDs []int64 `json:"expenseIds"`
	}
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	if err := s.expenses.DeleteBulk(c.Context(), caller, in.ExpenseIDs); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Successfully deleted %d expenses", len(in.ExpenseIDs)),
	})
}

func (s *Server) handleDeleteExpense(c fiber.Ctx) error {
	if s.expenses == nil {
		return service.ErrServiceUnavailable
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid expense ID")
	}
	if err := s.expenses.Delete(c.Context(), caller, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Expense deleted successfully"})
}

func nonNil(list []types.Expense) []types.Expense {
	if list == nil {
		return []types.Expense{}
	}
	return list
}

// FastHTTPHandler returns a raw fasthttp handler for WebSocket upgrades.
// Handler routes the "/ws" path here; fiber never sees upgrade requests.
func (s *Server) FastHTTPHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"WebSocket upgrade required"}`)
			return
		}
		if limit := s.cfg.Socket.MaxConnections; limit > 0 && s.hub.ClientCount() >= limit {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"Too many connections"}`)
			s.logger.Warn().Int("limit", limit).Msg("websocket connection refused")
			return
		}

		clientID := uuid.New().String()
		base := s.ctx
		if base == nil {
			base = context.Background()
		}

		err := s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := hub.NewClient(clientID, newFasthttpConn(conn, s.cfg.Socket), s.hub)
			// The check above is a fast path; concurrent upgrades are capped here.
			if !s.hub.RegisterWithin(client, s.cfg.Socket.MaxConnections) {
				deadline := time.Now().Add(s.cfg.Socket.WriteTimeout)
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				_ = conn.Close()
				return
			}
			go client.WritePump()
			client.ReadPump(base)
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// fasthttpConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type fasthttpConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newFasthttpConn(conn *websocket.Conn, cfg config.SocketConfig) *fasthttpConn {
	conn.SetReadLimit(cfg.ReadLimit)
	if wait := cfg.PongWait(); wait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	return &fasthttpConn{conn: conn, writeTimeout: cfg.WriteTimeout}
}

func (f *fasthttpConn) WriteJSON(v any) error {
	if f.writeTimeout > 0 {
		_ = f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	}
	return f.conn.WriteJSON(v)
}

// ReadJSON decodes the next text or binary frame. Transport errors are
// returned as is; a frame that fails to decode wraps types.ErrMalformedFrame.
func (f *fasthttpConn) ReadJSON(v any) error {
	_, r, err := f.conn.NextReader()
	if err != nil {
		return err
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || websocket.IsUnexpectedCloseError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", types.ErrMalformedFrame, err)
	}
	return nil
}

func (f *fasthttpConn) Ping() error {
	return f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(f.writeTimeout))
}

func (f *fasthttpConn) Close() error { return f.conn.Close() }
