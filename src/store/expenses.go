package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/orchestra-mcp/expense/src/types"
)

const expenseColumns = `e.id, e.user_id, e.amount, e.description, e.category, e.date, e.created_at, e.updated_at`

func scanExpense(row pgx.CollectableRow) (types.Expense, error) {
	var e types.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Description, &e.Category, &e.Date, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanExpenseWithOwner(row pgx.CollectableRow) (types.Expense, error) {
	var e types.Expense
	var owner types.UserSummary
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Description, &e.Category, &e.Date, &e.CreatedAt, &e.UpdatedAt,
		&owner.ID, &owner.Username, &owner.Email)
	e.User = &owner
	return e, err
}

// ExpensesByUser lists a user's expenses, newest first.
func (s *Store) ExpensesByUser(ctx context.Context, userID int64) ([]types.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses e WHERE e.user_id = $1 ORDER BY e.date DESC, e.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanExpense)
}

// AllExpenses lists every expense with its owner, newest first.
func (s *Store) AllExpenses(ctx context.Context) ([]types.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+expenseColumns+`, u.id, u.username, u.email
		FROM expenses e JOIN users u ON u.id = e.user_id
		ORDER BY e.date DESC, e.id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanExpenseWithOwner)
}

// ExpensesByIDs returns the expenses whose id is in ids. Missing ids are
// simply absent from the result.
func (s *Store) ExpensesByIDs(ctx context.Context, ids []int64) ([]types.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses e WHERE e.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanExpense)
}

// CreateExpenses inserts all of in for userID in one transaction.
func (s *Store) CreateExpenses(ctx context.Context, userID int64, in []types.Expense) ([]types.Expense, error) {
	out := make([]types.Expense, 0, len(in))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range in {
			rows, err := tx.Query(ctx, `
				INSERT INTO expenses AS e (user_id, amount, description, category, date)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING `+expenseColumns,
				userID, e.Amount, e.Description, e.Category, e.Date)
			if err != nil {
				return err
			}
			created, err := pgx.CollectExactlyOneRow(rows, scanExpense)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create expenses: %w", translate(err))
	}
	return out, nil
}

// DeleteExpenses removes all ids in one transaction. It fails with
// ErrNotFound, deleting nothing, if any id does not exist.
func (s *Store) DeleteExpenses(ctx context.Context, ids []int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM expenses WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(ids)) {
			return ErrNotFound
		}
		return nil
	})
}
