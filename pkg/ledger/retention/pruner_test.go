package retention

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"meridian-hq/meridian/pkg/ledger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedTransactions(t *testing.T, store ledger.Store, ages []time.Duration) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "acct-1", 1_000); err != nil {
		t.Fatal(err)
	}

	balance := int64(1_000)
	for i, age := range ages {
		balance -= 1
		txn := &ledger.Transaction{
			ID:            string(rune('a' + i)),
			AccountID:     "acct-1",
			DeltaMicros:   -1,
			Reason:        "inference",
			BalanceMicros: balance,
			CreatedAt:     time.Now().Add(-age),
		}
		if err := store.ApplyChange(ctx, "acct-1", int64(i+1), txn); err != nil {
			t.Fatal(err)
		}
	}
}

// ============================================================================
// Pruner Tests
// ============================================================================

func TestPruneDeletesOldTransactions(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedTransactions(t, store, []time.Duration{
		100 * 24 * time.Hour, // old
		95 * 24 * time.Hour,  // old
		5 * 24 * time.Hour,   // recent
	})

	p := NewPruner(store, Config{RetentionDays: 90}, quietLogger())

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	txns, _ := store.Transactions(context.Background(), "acct-1", 0)
	if len(txns) != 1 || txns[0].ID != "c" {
		t.Errorf("remaining = %+v, want only the recent entry", txns)
	}
}

func TestPruneZeroRetentionIsNoOp(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedTransactions(t, store, []time.Duration{365 * 24 * time.Hour})

	p := NewPruner(store, Config{RetentionDays: 0}, quietLogger())

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0 with retention disabled", deleted)
	}
}

func TestPruneLeavesBalanceAlone(t *testing.T) {
	store := ledger.NewMemoryStore()
	seedTransactions(t, store, []time.Duration{
		100 * 24 * time.Hour,
		100 * 24 * time.Hour,
	})

	p := NewPruner(store, Config{RetentionDays: 30}, quietLogger())
	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}

	acct, err := store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if acct.BalanceMicros != 998 {
		t.Errorf("balance = %d, want 998 (pruning must not touch balances)", acct.BalanceMicros)
	}
}

// ============================================================================
// Scheduler Tests
// ============================================================================

func TestSchedulerLifecycle(t *testing.T) {
	store := ledger.NewMemoryStore()
	p := NewPruner(store, Config{RetentionDays: 90, PruneSchedule: "0 3 * * *"}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.scheduler.IsRunning() {
		t.Error("scheduler should be running")
	}
	if p.NextPruning() == nil {
		t.Error("expected a next pruning time")
	}

	p.Stop()
	if p.scheduler.IsRunning() {
		t.Error("scheduler should be stopped")
	}
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	store := ledger.NewMemoryStore()
	p := NewPruner(store, Config{RetentionDays: 90, PruneSchedule: "not a cron"}, quietLogger())

	if err := p.Start(context.Background()); err == nil {
		t.Error("expected invalid cron expression to fail Start")
	}
}

func TestSchedulerEmptyScheduleDisabled(t *testing.T) {
	store := ledger.NewMemoryStore()
	p := NewPruner(store, Config{RetentionDays: 90}, quietLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start with empty schedule should no-op: %v", err)
	}
	if p.scheduler.IsRunning() {
		t.Error("scheduler should not be running without a schedule")
	}
}
