package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store on SQLite for single-instance durability.
// The database runs in WAL mode with a background checkpoint loop.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes.
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (creating if needed) a ledger database with default
// settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig opens a ledger database with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	go s.checkpointLoop()

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance_micros INTEGER NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		delta_micros INTEGER NOT NULL,
		reason TEXT NOT NULL,
		request_id TEXT,
		balance_micros INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_txn_account ON transactions(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_txn_created ON transactions(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateAccount creates an account with an opening balance at version 1.
func (s *SQLiteStore) CreateAccount(ctx context.Context, id string, openingMicros int64) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account id cannot be empty")
	}
	if openingMicros < 0 {
		return nil, fmt.Errorf("opening balance cannot be negative")
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, balance_micros, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
	`, id, openingMicros, now.Unix(), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("account %q already exists", id)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &Account{
		ID:            id,
		BalanceMicros: openingMicros,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// GetAccount returns a snapshot of the account.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	var (
		acct      Account
		createdAt int64
		updatedAt int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, balance_micros, version, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id).Scan(&acct.ID, &acct.BalanceMicros, &acct.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	acct.CreatedAt = time.Unix(createdAt, 0)
	acct.UpdatedAt = time.Unix(updatedAt, 0)
	return &acct, nil
}

// ApplyChange performs the version-guarded balance update and the
// transaction append in one database transaction. A version mismatch rolls
// back and returns ErrConflict.
func (s *SQLiteStore) ApplyChange(ctx context.Context, accountID string, expectedVersion int64, txn *Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_micros = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, txn.BalanceMicros, txn.CreatedAt.Unix(), accountID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the account is gone or someone else won the version race.
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM accounts WHERE id = ?`, accountID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
		}
		if err != nil {
			return fmt.Errorf("failed to read account version: %w", err)
		}
		return fmt.Errorf("%w: account %q at version %d, expected %d",
			ErrConflict, accountID, current, expectedVersion)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, delta_micros, reason, request_id, balance_micros, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.AccountID, txn.DeltaMicros, txn.Reason, txn.RequestID, txn.BalanceMicros, txn.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return tx.Commit()
}

// Transactions returns the account's entries, newest first.
func (s *SQLiteStore) Transactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, account_id, delta_micros, reason, request_id, balance_micros, created_at
		FROM transactions WHERE account_id = ? ORDER BY created_at DESC
	`
	args := []any{accountID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var (
			t         Transaction
			requestID sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.DeltaMicros, &t.Reason, &requestID, &t.BalanceMicros, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.RequestID = requestID.String
		t.CreatedAt = time.Unix(0, createdAt)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return out, nil
}

// DeleteTransactionsBefore removes entries older than cutoff.
func (s *SQLiteStore) DeleteTransactionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.done)
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
