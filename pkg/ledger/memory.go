package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and ephemeral deployments.
// All state is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*Account
	transactions map[string][]*Transaction // accountID -> entries, oldest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*Account),
		transactions: make(map[string][]*Transaction),
	}
}

// CreateAccount creates an account with an opening balance at version 1.
func (s *MemoryStore) CreateAccount(_ context.Context, id string, openingMicros int64) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account id cannot be empty")
	}
	if openingMicros < 0 {
		return nil, fmt.Errorf("opening balance cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; exists {
		return nil, fmt.Errorf("account %q already exists", id)
	}

	now := time.Now()
	acct := &Account{
		ID:            id,
		BalanceMicros: openingMicros,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[id] = acct

	snapshot := *acct
	return &snapshot, nil
}

// GetAccount returns a snapshot of the account.
func (s *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, id)
	}
	snapshot := *acct
	return &snapshot, nil
}

// ApplyChange performs the compare-and-swap balance update plus the
// transaction append under one lock.
func (s *MemoryStore) ApplyChange(_ context.Context, accountID string, expectedVersion int64, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	if acct.Version != expectedVersion {
		return fmt.Errorf("%w: account %q at version %d, expected %d",
			ErrConflict, accountID, acct.Version, expectedVersion)
	}

	acct.BalanceMicros = txn.BalanceMicros
	acct.Version++
	acct.UpdatedAt = txn.CreatedAt

	entry := *txn
	s.transactions[accountID] = append(s.transactions[accountID], &entry)
	return nil
}

// Transactions returns the account's entries, newest first.
func (s *MemoryStore) Transactions(_ context.Context, accountID string, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}

	entries := s.transactions[accountID]
	out := make([]*Transaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		snapshot := *entries[i]
		out = append(out, &snapshot)
	}
	return out, nil
}

// DeleteTransactionsBefore removes entries older than cutoff.
func (s *MemoryStore) DeleteTransactionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entries := range s.transactions {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		s.transactions[id] = kept
	}
	return deleted, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
