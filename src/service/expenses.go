package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
)

// ExpenseStore persists expenses.
type ExpenseStore interface {
	ExpensesByUser(ctx context.Context, userID int64) ([]types.Expense, error)
	AllExpenses(ctx context.Context) ([]types.Expense, error)
	ExpensesByIDs(ctx context.Context, ids []int64) ([]types.Expense, error)
	CreateExpenses(ctx context.Context, userID int64, in []types.Expense) ([]types.Expense, error)
	DeleteExpenses(ctx context.Context, ids []int64) error
}

// Expenses applies the access policy to expense operations.
type Expenses struct {
	store    ExpenseStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewExpenses creates the expense service.
func NewExpenses(s ExpenseStore, logger zerolog.Logger) *Expenses {
	return &Expenses{
		store:    s,
		validate: newValidator(),
		logger:   logger.With().Str("component", "expenses").Logger(),
	}
}

// ForUser lists the expenses of userID if the caller may read them.
func (e *Expenses) ForUser(ctx context.Context, caller types.Claims, userID int64) ([]types.Expense, error) {
	if err := auth.Authorize(caller, userID).Err(); err != nil {
		return nil, err
	}
	return e.store.ExpensesByUser(ctx, userID)
}

// All lists every expense. Admin only.
func (e *Expenses) All(ctx context.Context, caller types.Claims) ([]types.Expense, error) {
	if err := auth.RequireRole(caller, types.RoleAdmin).Err(); err != nil {
		return nil, err
	}
	return e.store.AllExpenses(ctx)
}

// Create stores one expense owned by the caller.
func (e *Expenses) Create(ctx context.Context, caller types.Claims, in types.ExpenseInput) (types.Expense, error) {
	rec, err := e.parse(in)
	if err != nil {
		return types.Expense{}, err
	}
	created, err := e.store.CreateExpenses(ctx, caller.ID, []types.Expense{rec})
	if err != nil {
		return types.Expense{}, err
	}
	return created[0], nil
}

// CreateBulk stores all of in atomically. Nothing is stored if any item is
// invalid.
func (e *Expenses) CreateBulk(ctx context.Context, caller types.Claims, in []types.ExpenseInput) ([]types.Expense, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: expected a non-empty array of expenses", ErrValidation)
	}
	recs := make([]types.Expense, 0, len(in))
	for _, item := range in {
		rec, err := e.parse(item)
		if err != nil {
			return nil, fmt.Errorf("%w: each expense must have amount, description, category and date", ErrValidation)
		}
		recs = append(recs, rec)
	}
	created, err := e.store.CreateExpenses(ctx, caller.ID, recs)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Int64("user_id", caller.ID).Int("count", len(created)).Msg("bulk expenses created")
	return created, nil
}

// Delete removes one expense owned by the caller, or any expense for an
// admin.
func (e *Expenses) Delete(ctx context.Context, caller types.Claims, id int64) error {
	return e.DeleteBulk(ctx, caller, []int64{id})
}

// DeleteBulk removes all ids atomically. It fails with ErrNotFound if any
// id is missing and with auth.ErrForbidden if a non-admin caller does not
// own every expense.
func (e *Expenses) DeleteBulk(ctx context.Context, caller types.Claims, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: expected a non-empty array of expense ids", ErrValidation)
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	found, err := e.store.ExpensesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%w: one or more expenses", ErrNotFound)
	}
	for _, exp := range found {
		if err := auth.Authorize(caller, exp.UserID).Err(); err != nil {
			return err
		}
	}
	if err := e.store.DeleteExpenses(ctx, ids); err != nil {
		return err
	}
	e.logger.Info().Int64("user_id", caller.ID).Int("count", len(ids)).Msg("expenses deleted")
	return nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func (e *Expenses) parse(in types.ExpenseInput) (types.Expense, error) {
	if err := e.validate.Struct(in); err != nil {
		return types.Expense{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return types.Expense{}, err
	}
	return types.Expense{
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Date:        date,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrValidation, s)
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
