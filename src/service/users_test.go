package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUsers(t *testing.T) (*service.Users, *auth.Verifier) {
	t.Helper()
	v := auth.NewVerifier("test-secret", time.Hour, zerolog.Nop())
	return service.NewUsers(newMemStore(), v, zerolog.Nop(), service.WithHashCost(bcrypt.MinCost)), v
}

func dana() types.NewUser {
	return types.NewUser{Username: "dana", Email: "dana@example.com", Password: "hunter22"}
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	users, v := newUsers(t)
	ctx := context.Background()

	u, token, err := users.Register(ctx, dana())
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, u.Role)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	claims, err := v.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
	assert.Equal(t, "dana", claims.Username)
	assert.Equal(t, types.RoleUser, claims.Role)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()
	_, _, err := users.Register(ctx, dana())
	require.NoError(t, err)

	sameEmail := dana()
	sameEmail.Username = "dana2"
	_, _, err = users.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, service.ErrUserExists)

	sameName := dana()
	sameName.Email = "other@example.com"
	_, _, err = users.Register(ctx, sameName)
	assert.ErrorIs(t, err, service.ErrUserExists)
}

func TestRegisterValidation(t *testing.T) {
	users, _ := newUsers(t)
	in := dana()
	in.Email = "not-an-email"
	_, _, err := users.Register(context.Background(), in)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestRegisterRejectsOverlongPasswords(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()

	in := dana()
	in.Password = strings.Repeat("a", 80)
	_, _, err := users.Register(ctx, in)
	assert.ErrorIs(t, err, service.ErrValidation)

	// 40 runes, 100 bytes.
	in.Password = strings.Repeat("é€", 20)
	_, _, err = users.Register(ctx, in)
	assert.ErrorIs(t, err, service.ErrValidation)

	in.Password = strings.Repeat("a", 72)
	_, _, err = users.Register(ctx, in)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()
	_, _, err := users.Register(ctx, dana())
	require.NoError(t, err)

	u, token, err := users.Login(ctx, types.Credentials{Email: "dana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "dana", u.Username)
	assert.NotEmpty(t, token)

	_, _, err = users.Login(ctx, types.Credentials{Email: "dana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = users.Login(ctx, types.Credentials{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestPromote(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()
	_, _, err := users.Register(ctx, dana())
	require.NoError(t, err)

	_, err = users.Promote(ctx, regular, "dana@example.com")
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = users.Promote(ctx, admin, "")
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = users.Promote(ctx, admin, "ghost@example.com")
	assert.ErrorIs(t, err, service.ErrNotFound)

	u, err := users.Promote(ctx, admin, "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, u.Role)
}

func TestLogoutWithoutRevocationStore(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()
	_, token, err := users.Register(ctx, dana())
	require.NoError(t, err)

	assert.ErrorIs(t, users.Logout(ctx, token), service.ErrServiceUnavailable)
}
