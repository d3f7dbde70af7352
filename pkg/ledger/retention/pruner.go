package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meridian-hq/meridian/pkg/ledger"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain transactions.
	// 0 means keep transactions forever (no pruning).
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string `yaml:"prune_schedule"`
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() Config {
	return Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention policy on the ledger's transaction log.
type Pruner struct {
	store     ledger.Store
	config    Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a retention pruner over the ledger store.
func NewPruner(store ledger.Store, config Config, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: logger.With("component", "ledger.retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes transactions older than the retention period and returns
// how many were deleted. With RetentionDays zero it is a no-op.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.store.DeleteTransactionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning transactions: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("pruned ledger transactions",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays)
	} else {
		p.logger.Debug("no transactions pruned",
			"retention_days", p.config.RetentionDays)
	}

	return deleted, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
