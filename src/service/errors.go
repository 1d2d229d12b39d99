package service

import (
	"errors"

	"github.com/orchestra-mcp/expense/src/store"
)

var (
	// ErrServiceUnavailable means a required component was not wired at
	// startup.
	ErrServiceUnavailable = errors.New("service not initialized")

	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("invalid request")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists is returned by Register when email or username is taken.
	ErrUserExists = errors.New("user already exists")

	ErrNotFound = store.ErrNotFound
)
