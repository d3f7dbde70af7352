package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLedger(t *testing.T) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	led := New(store, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	return led, store
}

// ============================================================================
// Debit Tests
// ============================================================================

func TestDebitHappyPath(t *testing.T) {
	led, _ := testLedger(t)
	ctx := context.Background()

	if _, err := led.store.CreateAccount(ctx, "acct-1", 10_000); err != nil {
		t.Fatal(err)
	}

	res, err := led.Debit(ctx, "acct-1", 7_500, "inference", "req-1")
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if res.BalanceMicros != 2_500 {
		t.Errorf("balance = %d, want 2500", res.BalanceMicros)
	}
	if res.TransactionID == "" {
		t.Error("expected a transaction id")
	}

	txns, err := led.Transactions(ctx, "acct-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 {
		t.Fatalf("transaction count = %d, want 1", len(txns))
	}
	if txns[0].DeltaMicros != -7_500 || txns[0].RequestID != "req-1" {
		t.Errorf("transaction = %+v", txns[0])
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	led, _ := testLedger(t)
	ctx := context.Background()

	if _, err := led.store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	_, err := led.Debit(ctx, "acct-1", 101, "inference", "req-1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Nothing was written: balance intact, no transaction appended.
	bal, err := led.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 100 {
		t.Errorf("balance = %d, want 100 (untouched)", bal)
	}
	txns, _ := led.Transactions(ctx, "acct-1", 0)
	if len(txns) != 0 {
		t.Errorf("transaction count = %d, want 0 after failed debit", len(txns))
	}
}

func TestDebitToExactlyZero(t *testing.T) {
	led, _ := testLedger(t)
	ctx := context.Background()

	if _, err := led.store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	res, err := led.Debit(ctx, "acct-1", 100, "inference", "req-1")
	if err != nil {
		t.Fatalf("debit to zero should succeed: %v", err)
	}
	if res.BalanceMicros != 0 {
		t.Errorf("balance = %d, want 0", res.BalanceMicros)
	}
}

func TestDebitUnknownAccount(t *testing.T) {
	led, _ := testLedger(t)

	_, err := led.Debit(context.Background(), "nobody", 1, "inference", "req-1")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestDebitNegativeAmount(t *testing.T) {
	led, _ := testLedger(t)

	if _, err := led.Debit(context.Background(), "acct-1", -5, "inference", ""); err == nil {
		t.Error("expected negative debit to fail")
	}
}

func TestCreditThenDebit(t *testing.T) {
	led, _ := testLedger(t)
	ctx := context.Background()

	if _, err := led.store.CreateAccount(ctx, "acct-1", 0); err != nil {
		t.Fatal(err)
	}

	if _, err := led.Credit(ctx, "acct-1", 50_000, "top_up", ""); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	res, err := led.Debit(ctx, "acct-1", 20_000, "inference", "req-1")
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if res.BalanceMicros != 30_000 {
		t.Errorf("balance = %d, want 30000", res.BalanceMicros)
	}

	txns, _ := led.Transactions(ctx, "acct-1", 0)
	if len(txns) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(txns))
	}
	// Newest first.
	if txns[0].DeltaMicros != -20_000 || txns[1].DeltaMicros != 50_000 {
		t.Errorf("transaction order wrong: %+v", txns)
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestConcurrentDebitsNeverDoubleSpend(t *testing.T) {
	// Two debits of 60 against a balance of 100: exactly one may win.
	led, _ := testLedger(t)
	ctx := context.Background()

	if _, err := led.store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = led.Debit(ctx, "acct-1", 60, "inference", fmt.Sprintf("req-%d", i))
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Errorf("ok = %d, insufficient = %d, want exactly 1 and 1", ok, insufficient)
	}

	bal, _ := led.Balance(ctx, "acct-1")
	if bal != 40 {
		t.Errorf("balance = %d, want 40", bal)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	led, _ := testLedger(t)
	ctx := context.Background()

	const (
		opening = 1_000
		debit   = 30
		workers = 50
	)
	if _, err := led.store.CreateAccount(ctx, "acct-1", opening); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := led.Debit(ctx, "acct-1", debit, "inference", fmt.Sprintf("req-%d", i))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	bal, _ := led.Balance(ctx, "acct-1")
	if bal < 0 {
		t.Fatalf("balance overdrawn: %d", bal)
	}
	if want := int64(opening - succeeded*debit); bal != want {
		t.Errorf("balance = %d, want %d (%d successful debits)", bal, want, succeeded)
	}

	txns, _ := led.Transactions(ctx, "acct-1", 0)
	if len(txns) != succeeded {
		t.Errorf("transaction count = %d, want %d (one per success)", len(txns), succeeded)
	}
}

// ============================================================================
// CAS Retry Tests
// ============================================================================

// contentiousStore injects version conflicts on the first n ApplyChange
// calls to exercise the retry loop.
type contentiousStore struct {
	*MemoryStore
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *contentiousStore) ApplyChange(ctx context.Context, accountID string, expectedVersion int64, txn *Transaction) error {
	s.mu.Lock()
	s.calls++
	inject := s.calls <= s.conflicts
	s.mu.Unlock()

	if inject {
		return fmt.Errorf("%w: injected", ErrConflict)
	}
	return s.MemoryStore.ApplyChange(ctx, accountID, expectedVersion, txn)
}

func TestDebitRetriesThroughConflicts(t *testing.T) {
	store := &contentiousStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	led := New(store, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	res, err := led.Debit(ctx, "acct-1", 10, "inference", "req-1")
	if err != nil {
		t.Fatalf("Debit should survive %d conflicts: %v", 2, err)
	}
	if res.BalanceMicros != 90 {
		t.Errorf("balance = %d, want 90", res.BalanceMicros)
	}
}

func TestDebitGivesUpAfterMaxRetries(t *testing.T) {
	store := &contentiousStore{MemoryStore: NewMemoryStore(), conflicts: maxCASRetries + 1}
	led := New(store, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	_, err := led.Debit(ctx, "acct-1", 10, "inference", "req-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict after exhausted retries", err)
	}

	bal, _ := led.Balance(ctx, "acct-1")
	if bal != 100 {
		t.Errorf("balance = %d, want 100 (untouched)", bal)
	}
}

// ============================================================================
// Store Contract Tests
// ============================================================================

func TestMemoryStoreVersionGuard(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, "acct-1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Version != 1 {
		t.Fatalf("opening version = %d, want 1", acct.Version)
	}

	txn := &Transaction{ID: "t1", AccountID: "acct-1", DeltaMicros: -10, BalanceMicros: 90, CreatedAt: time.Now()}
	if err := store.ApplyChange(ctx, "acct-1", 1, txn); err != nil {
		t.Fatalf("first ApplyChange: %v", err)
	}

	// Stale version loses.
	stale := &Transaction{ID: "t2", AccountID: "acct-1", DeltaMicros: -10, BalanceMicros: 80, CreatedAt: time.Now()}
	if err := store.ApplyChange(ctx, "acct-1", 1, stale); !errors.Is(err, ErrConflict) {
		t.Errorf("stale write err = %v, want ErrConflict", err)
	}

	got, _ := store.GetAccount(ctx, "acct-1")
	if got.Version != 2 || got.BalanceMicros != 90 {
		t.Errorf("account = %+v, want version 2 balance 90", got)
	}
}

func TestMemoryStoreDuplicateAccount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateAccount(ctx, "acct-1", 0); err == nil {
		t.Error("expected duplicate create to fail")
	}
}

func TestMemoryStoreSnapshotsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	snap, _ := store.GetAccount(ctx, "acct-1")
	snap.BalanceMicros = 999_999

	fresh, _ := store.GetAccount(ctx, "acct-1")
	if fresh.BalanceMicros != 100 {
		t.Errorf("mutating a snapshot leaked into the store: balance = %d", fresh.BalanceMicros)
	}
}
