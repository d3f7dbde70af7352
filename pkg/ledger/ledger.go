package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meridian-hq/meridian/pkg/telemetry/metrics"
)

const (
	// maxCASRetries bounds how many times a Debit or Credit retries after
	// losing the version race before surfacing ErrConflict.
	maxCASRetries = 3

	// retryBackoff is the pause between CAS retries, scaled by attempt.
	retryBackoff = 2 * time.Millisecond
)

// Ledger applies debits and credits against a Store with bounded
// compare-and-swap retries.
//
// # Example
//
//	store := ledger.NewMemoryStore()
//	led := ledger.New(store, ledger.Options{Logger: logger})
//
//	res, err := led.Debit(ctx, "acct-1", 7500, "inference", requestID)
//	if errors.Is(err, ledger.ErrInsufficientFunds) {
//	    // reply 402
//	}
type Ledger struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.LedgerMetrics
}

// Options configures optional ledger behavior.
type Options struct {
	// Logger receives debit reports (default slog.Default).
	Logger *slog.Logger

	// Metrics receives debit counters (default: unregistered no-op set).
	Metrics *metrics.LedgerMetrics
}

// New creates a ledger over the given store.
func New(store Store, opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewLedgerMetrics(nil)
	}
	return &Ledger{
		store:   store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Debit subtracts amountMicros from the account. A balance below the amount
// fails with ErrInsufficientFunds before anything is written; losing the
// version race retries against the fresh balance up to maxCASRetries times.
func (l *Ledger) Debit(ctx context.Context, accountID string, amountMicros int64, reason, requestID string) (*DebitResult, error) {
	if amountMicros < 0 {
		return nil, fmt.Errorf("debit amount cannot be negative")
	}

	res, err := l.apply(ctx, accountID, -amountMicros, reason, requestID)
	switch {
	case err == nil:
		l.metrics.RecordDebit("ok", amountMicros)
	case errors.Is(err, ErrInsufficientFunds):
		l.metrics.RecordDebit("insufficient_funds", 0)
	case errors.Is(err, ErrConflict):
		l.metrics.RecordDebit("conflict", 0)
	default:
		l.metrics.RecordDebit("error", 0)
	}
	return res, err
}

// Credit adds amountMicros to the account with the same retry behavior as
// Debit. Credits cannot fail for funds.
func (l *Ledger) Credit(ctx context.Context, accountID string, amountMicros int64, reason, requestID string) (*DebitResult, error) {
	if amountMicros < 0 {
		return nil, fmt.Errorf("credit amount cannot be negative")
	}
	return l.apply(ctx, accountID, amountMicros, reason, requestID)
}

// Balance returns the account's current balance in micro-dollars.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int64, error) {
	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acct.BalanceMicros, nil
}

// Transactions returns the account's ledger entries, newest first.
func (l *Ledger) Transactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	return l.store.Transactions(ctx, accountID, limit)
}

// apply runs the read-check-CAS loop for a signed delta.
func (l *Ledger) apply(ctx context.Context, accountID string, deltaMicros int64, reason, requestID string) (*DebitResult, error) {
	var lastErr error

	for attempt := 0; attempt <= maxCASRetries; attempt++ {
		if attempt > 0 {
			l.metrics.RecordCASRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		acct, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}

		newBalance := acct.BalanceMicros + deltaMicros
		if newBalance < 0 {
			return nil, fmt.Errorf("%w: account %q has %d micros, needs %d",
				ErrInsufficientFunds, accountID, acct.BalanceMicros, -deltaMicros)
		}

		txn := &Transaction{
			ID:            uuid.NewString(),
			AccountID:     accountID,
			DeltaMicros:   deltaMicros,
			Reason:        reason,
			RequestID:     requestID,
			BalanceMicros: newBalance,
			CreatedAt:     time.Now(),
		}

		err = l.store.ApplyChange(ctx, accountID, acct.Version, txn)
		if err == nil {
			l.logger.Debug("ledger change applied",
				"account", accountID,
				"delta_micros", deltaMicros,
				"balance_micros", newBalance,
				"reason", reason,
				"request_id", requestID)
			return &DebitResult{BalanceMicros: newBalance, TransactionID: txn.ID}, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
	}

	l.logger.Warn("ledger change abandoned after retries",
		"account", accountID,
		"delta_micros", deltaMicros,
		"retries", maxCASRetries)
	return nil, lastErr
}
