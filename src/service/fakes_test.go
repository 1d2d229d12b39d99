package service_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/orchestra-mcp/expense/src/store"
	"github.com/orchestra-mcp/expense/src/types"
)

// memStore is an in-memory UserStore and ExpenseStore.
type memStore struct {
	mu       sync.Mutex
	users    []types.User
	expenses map[int64]types.Expense
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{expenses: make(map[int64]types.Expense)}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, u types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email || x.Username == u.Username {
			return types.User{}, store.ErrConflict
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users = append(m.users, u)
	return u, nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memStore) UserExists(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetRole(_ context.Context, email string, role types.Role) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.Email == email {
			m.users[i].Role = role
			return m.users[i], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memStore) ExpensesByUser(_ context.Context, userID int64) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Expense
	for _, e := range m.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) AllExpenses(context.Context) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ExpensesByIDs(_ context.Context, ids []int64) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Expense
	for _, id := range ids {
		if e, ok := m.expenses[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CreateExpenses(_ context.Context, userID int64, in []types.Expense) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Expense, 0, len(in))
	for _, e := range in {
		e.ID = m.id()
		e.UserID = userID
		m.expenses[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) DeleteExpenses(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.expenses[id]; !ok {
			return store.ErrNotFound
		}
	}
	for _, id := range ids {
		delete(m.expenses, id)
	}
	return nil
}

func (m *memStore) expenseIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.expenses))
	for id := range m.expenses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
