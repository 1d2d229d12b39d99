package providers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/rs/zerolog"
)

// statusFor maps a service error to an HTTP status and a client message.
// Unknown errors are internal and their text is not exposed.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "Authentication required"
	case errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized, "Invalid token"
	case errors.Is(err, auth.ErrAuthUnavailable):
		return fiber.StatusServiceUnavailable, "Authentication unavailable"
	case errors.Is(err, auth.ErrForbidden):
		return fiber.StatusForbidden, "Access denied"
	case errors.Is(err, service.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrUserExists):
		return fiber.StatusBadRequest, "User already exists"
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrRevocationUnavailable):
		return fiber.StatusServiceUnavailable, "Logout is unavailable"
	case errors.Is(err, service.ErrServiceUnavailable):
		return fiber.StatusInternalServerError, "Service not initialized"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// errorHandler is the fiber error handler. Every failure is answered as
// {"error": message}.
func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code, msg := statusFor(err)
		ev := logger.Debug()
		if code >= fiber.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("request failed")
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
