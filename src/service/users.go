package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/store"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u types.User) (types.User, error)
	UserByEmail(ctx context.Context, email string) (types.User, error)
	UserExists(ctx context.Context, email, username string) (bool, error)
	SetRole(ctx context.Context, email string, role types.Role) (types.User, error)
}

// Tokens issues and revokes bearer tokens.
type Tokens interface {
	Issue(c types.Claims) (string, time.Time, error)
	Revoke(ctx context.Context, raw string) error
}

// Users implements registration, login, logout and role promotion.
type Users struct {
	store    UserStore
	tokens   Tokens
	validate *validator.Validate
	cost     int
	logger   zerolog.Logger
}

// UsersOption configures Users.
type UsersOption func(*Users)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) UsersOption {
	return func(u *Users) { u.cost = cost }
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// NewUsers creates the user service.
func NewUsers(s UserStore, t Tokens, logger zerolog.Logger, opts ...UsersOption) *Users {
	u := &Users{
		store:    s,
		tokens:   t,
		validate: newValidator(),
		cost:     bcrypt.DefaultCost,
		logger:   logger.With().Str("component", "users").Logger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Register creates a USER account and returns it with a fresh token.
// Callers cannot choose their role.
func (u *Users) Register(ctx context.Context, in types.NewUser) (types.User, string, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := u.validate.Struct(in); err != nil {
		return types.User{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	// The tag counts runes; bcrypt's limit is in bytes.
	if len(in.Password) > maxPasswordBytes {
		return types.User{}, "", fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}

	exists, err := u.store.UserExists(ctx, in.Email, in.Username)
	if err != nil {
		return types.User{}, "", err
	}
	if exists {
		return types.User{}, "", ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.cost)
	if err != nil {
		return types.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := u.store.CreateUser(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Address:      in.Address,
		PhoneNo:      in.PhoneNo,
		Role:         types.RoleUser,
	})
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, "", ErrUserExists
	}
	if err != nil {
		return types.User{}, "", err
	}

	token, _, err := u.tokens.Issue(user.Claims())
	if err != nil {
		return types.User{}, "", err
	}
	u.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, token, nil
}

// Login checks credentials and returns the user with a fresh token. Unknown
// email and wrong password fail identically.
func (u *Users) Login(ctx context.Context, in types.Credentials) (types.User, string, error) {
	if err := u.validate.Struct(in); err != nil {
		return types.User{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := u.store.UserByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return types.User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, _, err := u.tokens.Issue(user.Claims())
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// Promote grants ADMIN to the account with email. Only admins may call it.
func (u *Users) Promote(ctx context.Context, caller types.Claims, email string) (types.User, error) {
	if err := auth.RequireRole(caller, types.RoleAdmin).Err(); err != nil {
		return types.User{}, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return types.User{}, fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := u.store.SetRole(ctx, email, types.RoleAdmin)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("%w: user with email %s", ErrNotFound, email)
	}
	if err != nil {
		return types.User{}, err
	}
	u.logger.Info().Int64("user_id", user.ID).Int64("by", caller.ID).Msg("user promoted to admin")
	return user, nil
}

// Logout revokes raw for the rest of its lifetime.
func (u *Users) Logout(ctx context.Context, raw string) error {
	if err := u.tokens.Revoke(ctx, raw); err != nil {
		if errors.Is(err, auth.ErrRevocationUnavailable) {
			return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		return err
	}
	return nil
}
