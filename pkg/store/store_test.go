package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
)

const testDefault money.Amount = 50000

// runStoreContract exercises the behaviour every backend must share. User ids
// are random so the test can run against shared databases.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	known := "known-" + uuid.NewString()
	fresh := "fresh-" + uuid.NewString()

	t.Run("apply to new user starts from default", func(t *testing.T) {
		require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{known: 1200}))

		b, ok, err := s.Balance(ctx, known)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, testDefault-1200, b)
	})

	t.Run("apply subtracts from existing balance", func(t *testing.T) {
		require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{known: 300}))

		b, _, err := s.Balance(ctx, known)
		require.NoError(t, err)
		assert.Equal(t, testDefault-1500, b)
	})

	t.Run("negative delta credits", func(t *testing.T) {
		require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{known: -500}))

		b, _, err := s.Balance(ctx, known)
		require.NoError(t, err)
		assert.Equal(t, testDefault-1000, b)
	})

	t.Run("unknown user has no row", func(t *testing.T) {
		_, ok, err := s.Balance(ctx, fresh)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{}))
	})

	t.Run("load returns applied balances", func(t *testing.T) {
		require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{fresh: testDefault + 10}))

		all, err := s.LoadBalances(ctx)
		require.NoError(t, err)
		assert.Equal(t, testDefault-1000, all[known])
		assert.Equal(t, money.Amount(-10), all[fresh])
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(testDefault)
	runStoreContract(t, s)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.ApplyDeltas(context.Background(), map[string]money.Amount{"a": 1}), ErrClosed)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tollbooth.db")
	s, err := NewSQLiteStore(path, testDefault)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tollbooth.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, testDefault)
	require.NoError(t, err)
	require.NoError(t, s.ApplyDeltas(ctx, map[string]money.Amount{"alice": 80, "bob": 20}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	s, err = NewSQLiteStore(path, testDefault)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]money.Amount{"alice": testDefault - 80, "bob": testDefault - 20}, all)
}

func TestSQLiteStore_CancelledContextAppliesNothing(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "t.db"), testDefault)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.ApplyDeltas(ctx, map[string]money.Amount{"alice": 80}))

	_, ok, err := s.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TOLLBOOTH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOLLBOOTH_TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(context.Background(), PostgresStoreConfig{DSN: dsn, MaxConns: 2, DefaultBalance: testDefault})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TOLLBOOTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOLLBOOTH_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())

	key := "tollbooth:test:" + uuid.NewString()
	t.Cleanup(func() {
		_ = rdb.Del(context.Background(), key).Err()
		_ = rdb.Close()
	})

	runStoreContract(t, NewRedisStoreFromClient(rdb, key, testDefault))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{Backend: "memory"}, testDefault)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, config.StoreConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")},
	}, testDefault)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.StoreConfig{Backend: "etcd"}, testDefault)
	assert.Error(t, err)
}
