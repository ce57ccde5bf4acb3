package repository

import (
	"context"
	"sort"
	"sync"

	"earnx/internal/ledger"
)

// MemoryAccountStore keeps accounts in process. It honours the same version
// check as AccountRepository.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]ledger.Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]ledger.Account)}
}

func copyAccount(a ledger.Account) ledger.Account {
	if a.History != nil {
		h := make([]ledger.Transaction, len(a.History))
		copy(h, a.History)
		a.History = h
	}
	return a
}

func (s *MemoryAccountStore) Get(_ context.Context, id string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *MemoryAccountStore) Create(_ context.Context, acct ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; ok {
		return ledger.Account{}, ErrAccountExists
	}
	acct.Version = 1
	s.accounts[acct.ID] = copyAccount(acct)
	return acct, nil
}

func (s *MemoryAccountStore) Update(_ context.Context, acct ledger.Account, expectedVersion int64) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[acct.ID]
	if !ok {
		return ledger.Account{}, ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return ledger.Account{}, ErrConflict
	}
	acct.Version = expectedVersion + 1
	s.accounts[acct.ID] = copyAccount(acct)
	return acct, nil
}

func (s *MemoryAccountStore) ListAll(_ context.Context) ([]ledger.Account, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, 0, nil
}

func (s *MemoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}
