package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/orchestra-mcp/expense/src/types"
)

const userColumns = `id, username, email, password, first_name, last_name, address, phone_no, role, created_at, updated_at`

func scanUser(row pgx.Row) (types.User, error) {
	var u types.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Address, &u.PhoneNo, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return types.User{}, translate(err)
	}
	r, err := types.ParseRole(role)
	if err != nil {
		return types.User{}, err
	}
	u.Role = r
	return u, nil
}

// CreateUser inserts u and returns the stored row.
func (s *Store) CreateUser(ctx context.Context, u types.User) (types.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password, first_name, last_name, address, phone_no, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Address, u.PhoneNo, string(u.Role))
	return scanUser(row)
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (types.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// UserExists reports whether email or username is already taken.
func (s *Store) UserExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		email, username).Scan(&exists)
	return exists, translate(err)
}

// SetRole changes the role of the user with email.
func (s *Store) SetRole(ctx context.Context, email string, role types.Role) (types.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE email = $1
		RETURNING `+userColumns, email, string(role))
	return scanUser(row)
}
