package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"tollbooth-hq/tollbooth/pkg/money"
)

// RedisStore implements Store on a single Redis hash mapping user id to
// balance in minor units.
type RedisStore struct {
	rdb            *redis.Client
	key            string
	defaultBalance money.Amount
	closeOnce      sync.Once
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr           string
	Password       string
	DB             int
	Key            string
	DefaultBalance money.Amount
}

// NewRedisStore connects and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Key == "" {
		cfg.Key = "tollbooth:balances"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(rdb, cfg.Key, cfg.DefaultBalance), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, key string, defaultBalance money.Amount) *RedisStore {
	return &RedisStore{rdb: rdb, key: key, defaultBalance: defaultBalance}
}

// LoadBalances returns every persisted balance.
func (s *RedisStore) LoadBalances(ctx context.Context) (map[string]money.Amount, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	out := make(map[string]money.Amount, len(raw))
	for userID, v := range raw {
		b, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid balance for %s: %w", userID, err)
		}
		out[userID] = money.Amount(b)
	}
	return out, nil
}

// ApplyDeltas applies the batch in one MULTI/EXEC transaction. HSETNX seeds
// unknown users at the default balance before HINCRBY subtracts the delta.
func (s *RedisStore) ApplyDeltas(ctx context.Context, deltas map[string]money.Amount) error {
	if len(deltas) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for userID, delta := range deltas {
			pipe.HSetNX(ctx, s.key, userID, int64(s.defaultBalance))
			pipe.HIncrBy(ctx, s.key, userID, -int64(delta))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply deltas: %w", err)
	}
	return nil
}

// Balance returns one persisted balance.
func (s *RedisStore) Balance(ctx context.Context, userID string) (money.Amount, bool, error) {
	b, err := s.rdb.HGet(ctx, s.key, userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load balance: %w", err)
	}
	return money.Amount(b), true, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client. Close is idempotent.
func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.rdb.Close() })
	return err
}
