// Package auth verifies bearer credentials and decides access to per-user
// resources.
//
// A Verifier turns a raw token into types.Claims or one of the sentinel
// errors below. Authorize and RequireRole are pure decisions over claims and
// perform no I/O.
package auth

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated means no credential was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidToken means a credential was presented but failed
	// verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden means the identity is valid but lacks the privilege.
	ErrForbidden = errors.New("access denied")

	// ErrAuthUnavailable means the credential could not be checked because
	// a backing store failed. The token itself may be fine.
	ErrAuthUnavailable = errors.New("authentication unavailable")
)

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header is empty or not a bearer credential.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
