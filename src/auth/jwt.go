package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
)

// ErrNoSecret is returned by Issue when the verifier has no signing secret.
var ErrNoSecret = errors.New("jwt secret not configured")

const defaultTTL = time.Hour

// RevocationList reports tokens that were explicitly logged out.
type RevocationList interface {
	Revoke(ctx context.Context, tokenHash string, until time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

type tokenClaims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwtlib.RegisteredClaims
}

// Verifier issues and verifies HMAC-SHA256 signed tokens.
type Verifier struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRevocationList makes Authenticate reject logged-out tokens.
func WithRevocationList(r RevocationList) Option {
	return func(v *Verifier) { v.revoked = r }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier. An empty secret is allowed: such a
// verifier rejects every token instead of failing at construction, so a
// missing secret disables authentication without taking down the process.
func NewVerifier(secret string, ttl time.Duration, logger zerolog.Logger, opts ...Option) *Verifier {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	v := &Verifier{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "auth").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if len(v.secret) == 0 {
		v.logger.Warn().Msg("jwt secret is empty, all tokens will be rejected")
	}
	return v
}

// Issue signs a token for c. It returns the token and its expiry.
func (v *Verifier) Issue(c types.Claims) (string, time.Time, error) {
	if len(v.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	now := v.now()
	exp := now.Add(v.ttl)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, tokenClaims{
		ID:       c.ID,
		Username: c.Username,
		Email:    c.Email,
		Role:     string(c.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   fmt.Sprint(c.ID),
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and validity window and returns the claims with
// the token expiry. It does not consult the revocation list.
func (v *Verifier) Verify(raw string) (types.Claims, time.Time, error) {
	if len(v.secret) == 0 {
		return types.Claims{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSecret)
	}
	var tc tokenClaims
	_, err := jwtlib.ParseWithClaims(raw, &tc, func(*jwtlib.Token) (any, error) {
		return v.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(v.now))
	if err != nil {
		return types.Claims{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	role, err := types.ParseRole(tc.Role)
	if err != nil {
		return types.Claims{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var exp time.Time
	if tc.ExpiresAt != nil {
		exp = tc.ExpiresAt.Time
	}
	return types.Claims{ID: tc.ID, Username: tc.Username, Email: tc.Email, Role: role}, exp, nil
}

// Authenticate is the gate used by both HTTP requests and WebSocket
// handshakes. A revocation lookup failure is treated as an invalid token.
func (v *Verifier) Authenticate(ctx context.Context, raw string) (types.Claims, error) {
	if raw == "" {
		return types.Claims{}, ErrUnauthenticated
	}
	c, _, err := v.Verify(raw)
	if err != nil {
		return types.Claims{}, err
	}
	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, HashToken(raw))
		if err != nil {
			v.logger.Error().Err(err).Int64("user_id", c.ID).Msg("revocation lookup failed")
			return types.Claims{}, fmt.Errorf("%w: revocation lookup: %w", ErrAuthUnavailable, err)
		}
		if revoked {
			return types.Claims{}, fmt.Errorf("%w: token revoked", ErrInvalidToken)
		}
	}
	return c, nil
}

// Revoke blocks raw until it would have expired anyway.
func (v *Verifier) Revoke(ctx context.Context, raw string) error {
	if v.revoked == nil {
		return ErrRevocationUnavailable
	}
	_, exp, err := v.Verify(raw)
	if err != nil {
		return err
	}
	return v.revoked.Revoke(ctx, HashToken(raw), exp)
}

// HashToken returns the storage key form of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}
