package service_test

import (
	"context"
	"testing"

	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	regular = types.Claims{ID: 10, Username: "reg", Role: types.RoleUser}
	other   = types.Claims{ID: 11, Username: "oth", Role: types.RoleUser}
	admin   = types.Claims{ID: 1, Username: "root", Role: types.RoleAdmin}
)

func lunch() types.ExpenseInput {
	return types.ExpenseInput{Amount: 12.5, Description: "lunch", Category: "food", Date: "2024-01-15"}
}

func newExpenses() (*service.Expenses, *memStore) {
	s := newMemStore()
	return service.NewExpenses(s, zerolog.Nop()), s
}

func TestCreateAndListOwnExpenses(t *testing.T) {
	svc, _ := newExpenses()
	ctx := context.Background()

	e, err := svc.Create(ctx, regular, lunch())
	require.NoError(t, err)
	assert.Equal(t, regular.ID, e.UserID)
	assert.Equal(t, 2024, e.Date.Year())

	list, err := svc.ForUser(ctx, regular, regular.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestForUserPolicy(t *testing.T) {
	svc, _ := newExpenses()
	ctx := context.Background()
	_, err := svc.Create(ctx, regular, lunch())
	require.NoError(t, err)

	_, err = svc.ForUser(ctx, other, regular.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	list, err := svc.ForUser(ctx, admin, regular.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAllIsAdminOnly(t *testing.T) {
	svc, _ := newExpenses()
	_, err := svc.All(context.Background(), regular)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.All(context.Background(), admin)
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newExpenses()
	ctx := context.Background()

	bad := lunch()
	bad.Description = ""
	_, err := svc.Create(ctx, regular, bad)
	assert.ErrorIs(t, err, service.ErrValidation)

	bad = lunch()
	bad.Date = "yesterday"
	_, err = svc.Create(ctx, regular, bad)
	assert.ErrorIs(t, err, service.ErrValidation)

	ok := lunch()
	ok.Date = "2024-01-15T10:30:00Z"
	_, err = svc.Create(ctx, regular, ok)
	assert.NoError(t, err)
}

func TestCreateBulkIsAllOrNothing(t *testing.T) {
	svc, s := newExpenses()
	ctx := context.Background()

	_, err := svc.CreateBulk(ctx, regular, nil)
	assert.ErrorIs(t, err, service.ErrValidation)

	bad := lunch()
	bad.Amount = 0
	_, err = svc.CreateBulk(ctx, regular, []types.ExpenseInput{lunch(), bad})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Empty(t, s.expenseIDs())

	created, err := svc.CreateBulk(ctx, regular, []types.ExpenseInput{lunch(), lunch()})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestDeletePolicy(t *testing.T) {
	svc, s := newExpenses()
	ctx := context.Background()
	e, err := svc.Create(ctx, regular, lunch())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, other, e.ID), auth.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, regular, 999), service.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, regular, e.ID))
	assert.Empty(t, s.expenseIDs())

	e, err = svc.Create(ctx, regular, lunch())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, admin, e.ID))
}

func TestDeleteBulk(t *testing.T) {
	svc, s := newExpenses()
	ctx := context.Background()
	mine, err := svc.CreateBulk(ctx, regular, []types.ExpenseInput{lunch(), lunch()})
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, other, lunch())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteBulk(ctx, regular, nil), service.ErrValidation)
	assert.ErrorIs(t, svc.DeleteBulk(ctx, regular, []int64{mine[0].ID, 404}), service.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteBulk(ctx, regular, []int64{mine[0].ID, theirs.ID}), auth.ErrForbidden)
	assert.Len(t, s.expenseIDs(), 3, "nothing deleted on failure")

	// Duplicate ids collapse.
	require.NoError(t, svc.DeleteBulk(ctx, regular, []int64{mine[0].ID, mine[1].ID, mine[0].ID}))
	assert.Equal(t, []int64{theirs.ID}, s.expenseIDs())

	require.NoError(t, svc.DeleteBulk(ctx, admin, []int64{theirs.ID}))
	assert.Empty(t, s.expenseIDs())
}
