// Package store persists user balances behind the in-memory ledger.
//
// A Store only ever receives batches of spend deltas from the flusher and
// serves the full balance table once at boot. It is never on the request
// path.
package store

import (
	"context"
	"errors"
	"fmt"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the durable side of the budget ledger.
type Store interface {
	// LoadBalances returns every persisted balance.
	LoadBalances(ctx context.Context) (map[string]money.Amount, error)

	// ApplyDeltas subtracts each delta from the user's balance as one batch.
	// Users without a row are inserted at the default balance minus their
	// delta. Either the whole batch is applied or none of it.
	ApplyDeltas(ctx context.Context, deltas map[string]money.Amount) error

	// Balance returns one persisted balance and whether the user has a row.
	Balance(ctx context.Context, userID string) (money.Amount, bool, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources. It is idempotent.
	Close() error
}

// New opens the backend selected in cfg.
func New(ctx context.Context, cfg config.StoreConfig, defaultBalance money.Amount) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(defaultBalance), nil
	case "sqlite":
		return NewSQLiteStoreWithConfig(SQLiteStoreConfig{
			Path:               cfg.SQLite.Path,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
			DefaultBalance:     defaultBalance,
		})
	case "postgres":
		return NewPostgresStore(ctx, PostgresStoreConfig{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			DefaultBalance: defaultBalance,
		})
	case "redis":
		return NewRedisStore(ctx, RedisStoreConfig{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			Key:            cfg.Redis.Key,
			DefaultBalance: defaultBalance,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
