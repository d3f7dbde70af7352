package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// SQLite Store Tests
// ============================================================================

func TestSQLiteCreateAndGet(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	created, err := store.CreateAccount(ctx, "acct-1", 5_000)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if created.Version != 1 || created.BalanceMicros != 5_000 {
		t.Errorf("created = %+v", created)
	}

	got, err := store.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.BalanceMicros != 5_000 || got.Version != 1 {
		t.Errorf("got = %+v", got)
	}

	if _, err := store.GetAccount(ctx, "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown account err = %v, want ErrAccountNotFound", err)
	}
	if _, err := store.CreateAccount(ctx, "acct-1", 0); err == nil {
		t.Error("expected duplicate create to fail")
	}
}

func TestSQLiteApplyChangeCAS(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	txn := &Transaction{
		ID: "t1", AccountID: "acct-1", DeltaMicros: -30,
		Reason: "inference", RequestID: "req-1",
		BalanceMicros: 70, CreatedAt: time.Now(),
	}
	if err := store.ApplyChange(ctx, "acct-1", 1, txn); err != nil {
		t.Fatalf("ApplyChange: %v", err)
	}

	// A stale version must fail and leave nothing behind.
	stale := &Transaction{ID: "t2", AccountID: "acct-1", DeltaMicros: -30, BalanceMicros: 40, CreatedAt: time.Now()}
	if err := store.ApplyChange(ctx, "acct-1", 1, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale write err = %v, want ErrConflict", err)
	}

	got, _ := store.GetAccount(ctx, "acct-1")
	if got.Version != 2 || got.BalanceMicros != 70 {
		t.Errorf("account = %+v, want version 2 balance 70", got)
	}

	txns, err := store.Transactions(ctx, "acct-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 || txns[0].ID != "t1" {
		t.Errorf("transactions = %+v, want only t1", txns)
	}
	if txns[0].RequestID != "req-1" || txns[0].DeltaMicros != -30 {
		t.Errorf("t1 = %+v", txns[0])
	}
}

func TestSQLiteApplyChangeUnknownAccount(t *testing.T) {
	store := testSQLiteStore(t)

	txn := &Transaction{ID: "t1", AccountID: "nobody", BalanceMicros: 0, CreatedAt: time.Now()}
	err := store.ApplyChange(context.Background(), "nobody", 1, txn)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestSQLiteTransactionsNewestFirstWithLimit(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	balance := int64(100)
	for i := 0; i < 5; i++ {
		balance -= 10
		txn := &Transaction{
			ID:            string(rune('a' + i)),
			AccountID:     "acct-1",
			DeltaMicros:   -10,
			Reason:        "inference",
			BalanceMicros: balance,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		if err := store.ApplyChange(ctx, "acct-1", int64(i+1), txn); err != nil {
			t.Fatalf("ApplyChange %d: %v", i, err)
		}
	}

	txns, err := store.Transactions(ctx, "acct-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 2 {
		t.Fatalf("len = %d, want 2", len(txns))
	}
	if txns[0].ID != "e" || txns[1].ID != "d" {
		t.Errorf("order = %s, %s, want e, d (newest first)", txns[0].ID, txns[1].ID)
	}
}

func TestSQLiteDeleteTransactionsBefore(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 100); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	for i, ts := range []time.Time{old, old.Add(time.Minute), recent} {
		txn := &Transaction{
			ID:            string(rune('a' + i)),
			AccountID:     "acct-1",
			DeltaMicros:   -1,
			BalanceMicros: int64(100 - i - 1),
			CreatedAt:     ts,
		}
		if err := store.ApplyChange(ctx, "acct-1", int64(i+1), txn); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.DeleteTransactionsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteTransactionsBefore: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	txns, _ := store.Transactions(ctx, "acct-1", 0)
	if len(txns) != 1 || txns[0].ID != "c" {
		t.Errorf("remaining = %+v, want only c", txns)
	}

	// Balance untouched by pruning.
	got, _ := store.GetAccount(ctx, "acct-1")
	if got.BalanceMicros != 97 {
		t.Errorf("balance = %d, want 97", got.BalanceMicros)
	}
}

func TestSQLiteLedgerEndToEnd(t *testing.T) {
	store := testSQLiteStore(t)
	led := New(store, Options{})
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 10_000); err != nil {
		t.Fatal(err)
	}

	if _, err := led.Debit(ctx, "acct-1", 4_000, "inference", "req-1"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if _, err := led.Credit(ctx, "acct-1", 1_000, "refund", "req-1"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	bal, err := led.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 7_000 {
		t.Errorf("balance = %d, want 7000", bal)
	}
}
