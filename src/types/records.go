package types

import "time"

// User is a stored account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Address      *string   `json:"address,omitempty"`
	PhoneNo      *string   `json:"phoneNo,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Claims returns the token claims for u.
func (u User) Claims() Claims {
	return Claims{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// UserSummary is the owner block embedded in admin expense listings.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Expense is a single spending record owned by one user.
type Expense struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"userId"`
	Amount      float64      `json:"amount"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Date        time.Time    `json:"date"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	User        *UserSummary `json:"user,omitempty"`
}

// NewUser is the input to register an account.
type NewUser struct {
	Username  string  `json:"username" validate:"required,max=64"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6,max=72"`
	FirstName string  `json:"firstName" validate:"max=128"`
	LastName  string  `json:"lastName" validate:"max=128"`
	Address   *string `json:"address"`
	PhoneNo   *string `json:"phoneNo"`
}

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ExpenseInput is the client-supplied part of an expense. Date accepts
// RFC 3339 or YYYY-MM-DD.
type ExpenseInput struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	Date        string  `json:"date" validate:"required"`
}
