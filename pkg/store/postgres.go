package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"tollbooth-hq/tollbooth/pkg/money"
)

// Compile-time checks
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// PostgresStore implements Store on a PostgreSQL table shared by every
// Tollbooth instance.
type PostgresStore struct {
	db             *sqlx.DB
	defaultBalance money.Amount
	closeOnce      sync.Once
}

// PostgresStoreConfig configures the PostgreSQL store.
type PostgresStoreConfig struct {
	DSN            string
	MaxConns       int
	DefaultBalance money.Amount
}

type balanceRow struct {
	UserID  string `db:"user_id"`
	Balance int64  `db:"balance"`
}

// NewPostgresStore connects and creates the budgets table if needed.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}

	s := &PostgresStore{db: db, defaultBalance: cfg.DefaultBalance}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS budgets (
			user_id TEXT PRIMARY KEY,
			balance BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// LoadBalances returns every persisted balance.
func (s *PostgresStore) LoadBalances(ctx context.Context) (map[string]money.Amount, error) {
	var rows []balanceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT user_id, balance FROM budgets`); err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	out := make(map[string]money.Amount, len(rows))
	for _, r := range rows {
		out[r.UserID] = money.Amount(r.Balance)
	}
	return out, nil
}

// ApplyDeltas applies the batch in one transaction.
func (s *PostgresStore) ApplyDeltas(ctx context.Context, deltas map[string]money.Amount) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO budgets (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			balance = budgets.balance - $3,
			updated_at = NOW()`

	for userID, delta := range deltas {
		if _, err := tx.ExecContext(ctx, query, userID, int64(s.defaultBalance-delta), int64(delta)); err != nil {
			return fmt.Errorf("failed to apply delta for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deltas: %w", err)
	}
	return nil
}

// Balance returns one persisted balance.
func (s *PostgresStore) Balance(ctx context.Context, userID string) (money.Amount, bool, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM budgets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load balance: %w", err)
	}
	return money.Amount(balance), true, nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool. Close is idempotent.
func (s *PostgresStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.db.Close() })
	return err
}
