package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"tollbooth-hq/tollbooth/pkg/money"
)

// SQLiteStore implements Store on a single SQLite file. It suits
// single-instance deployments.
//
// The database runs in WAL mode with one connection, so every batch is
// serialized. A background loop checkpoints the WAL periodically.
type SQLiteStore struct {
	db                 *sql.DB
	path               string
	defaultBalance     money.Amount
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	applyStmt   *sql.Stmt
	balanceStmt *sql.Stmt
	loadStmt    *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// DefaultBalance seeds users seen for the first time.
	DefaultBalance money.Amount
}

// NewSQLiteStore opens a SQLite store with default settings.
func NewSQLiteStore(path string, defaultBalance money.Amount) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{Path: path, DefaultBalance: defaultBalance})
}

// NewSQLiteStoreWithConfig opens a SQLite store.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:                 db,
		path:               cfg.Path,
		defaultBalance:     cfg.DefaultBalance,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go s.checkpointLoop()

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS budgets (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.applyStmt, err = s.db.Prepare(`
		INSERT INTO budgets (user_id, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = budgets.balance - ?,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare apply statement: %w", err)
	}

	s.balanceStmt, err = s.db.Prepare(`SELECT balance FROM budgets WHERE user_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare balance statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`SELECT user_id, balance FROM budgets`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	return nil
}

// LoadBalances returns every persisted balance.
func (s *SQLiteStore) LoadBalances(ctx context.Context) (map[string]money.Amount, error) {
	rows, err := s.loadStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]money.Amount)
	for rows.Next() {
		var (
			userID  string
			balance int64
		)
		if err := rows.Scan(&userID, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out[userID] = money.Amount(balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// ApplyDeltas applies the batch in one transaction.
func (s *SQLiteStore) ApplyDeltas(ctx context.Context, deltas map[string]money.Amount) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := tx.StmtContext(ctx, s.applyStmt)
	now := time.Now().Unix()
	for userID, delta := range deltas {
		if _, err := stmt.ExecContext(ctx, userID, int64(s.defaultBalance-delta), now, int64(delta)); err != nil {
			return fmt.Errorf("failed to apply delta for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deltas: %w", err)
	}
	return nil
}

// Balance returns one persisted balance.
func (s *SQLiteStore) Balance(ctx context.Context, userID string) (money.Amount, bool, error) {
	var balance int64
	err := s.balanceStmt.QueryRowContext(ctx, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load balance: %w", err)
	}
	return money.Amount(balance), true, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close checkpoints the WAL and closes the database. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.applyStmt, s.balanceStmt, s.loadStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

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
