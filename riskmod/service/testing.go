package service

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process AccountDirectory, for tests and local development.
type MemAccounts struct {
	accounts *xsync.MapOf[string, Account]
}

var _ AccountDirectory = (*MemAccounts)(nil)

func NewMemAccounts(accounts ...Account) *MemAccounts {
	m := &MemAccounts{accounts: xsync.NewMapOf[string, Account]()}
	for _, a := range accounts {
		m.Put(a)
	}
	return m
}

func (m *MemAccounts) Put(a Account) {
	m.accounts.Store(a.ID, a)
}

func (m *MemAccounts) LookupAccount(ctx context.Context, userID string) (*Account, error) {
	a, ok := m.accounts.Load(userID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}
