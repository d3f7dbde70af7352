package ledger

import (
	"context"
	"time"
)

// Store persists accounts and their transaction log.
//
// ApplyChange is the only write path for balances and must be atomic: the
// balance update (guarded by expectedVersion) and the transaction append
// either both happen or neither does. A version mismatch returns
// ErrConflict and leaves the store untouched.
type Store interface {
	// CreateAccount creates an account with an opening balance at version 1.
	// Creating an id that already exists is an error.
	CreateAccount(ctx context.Context, id string, openingMicros int64) (*Account, error)

	// GetAccount returns a snapshot of the account, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// ApplyChange sets the account's balance to txn.BalanceMicros and bumps
	// its version, if and only if the stored version equals expectedVersion,
	// appending txn in the same atomic step.
	ApplyChange(ctx context.Context, accountID string, expectedVersion int64, txn *Transaction) error

	// Transactions returns the account's entries, newest first, capped at
	// limit (0 means no cap).
	Transactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error)

	// DeleteTransactionsBefore removes entries created before cutoff and
	// returns how many were deleted. Account balances are unaffected.
	DeleteTransactionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}
