package ledger

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned when the account id is unknown.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a debit would take the balance
	// below zero. The balance and transaction log are untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict is returned when a compare-and-swap write lost to a
	// concurrent writer. The Ledger retries a bounded number of times
	// before surfacing it.
	ErrConflict = errors.New("account version conflict")
)

// Account is one credit account. BalanceMicros is micro-dollars; Version
// increments on every applied change and guards compare-and-swap writes.
type Account struct {
	ID            string    `json:"id"`
	BalanceMicros int64     `json:"balance_micros"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction is one immutable ledger entry. DeltaMicros is negative for
// debits, positive for credits.
type Transaction struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	DeltaMicros   int64     `json:"delta_micros"`
	Reason        string    `json:"reason"`
	RequestID     string    `json:"request_id,omitempty"`
	BalanceMicros int64     `json:"balance_micros"`
	CreatedAt     time.Time `json:"created_at"`
}

// DebitResult reports an applied balance change.
type DebitResult struct {
	// BalanceMicros is the balance after the change.
	BalanceMicros int64

	// TransactionID identifies the appended ledger entry.
	TransactionID string
}
