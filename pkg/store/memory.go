package store

import (
	"context"
	"sync"

	"tollbooth-hq/tollbooth/pkg/money"
)

// MemoryStore implements Store in process memory. Balances are lost when the
// process exits; it exists for tests and single-shot local runs.
type MemoryStore struct {
	mu             sync.RWMutex
	balances       map[string]money.Amount
	defaultBalance money.Amount
	closed         bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(defaultBalance money.Amount) *MemoryStore {
	return &MemoryStore{
		balances:       make(map[string]money.Amount),
		defaultBalance: defaultBalance,
	}
}

// Seed sets balances directly.
func (m *MemoryStore) Seed(balances map[string]money.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for u, b := range balances {
		m.balances[u] = b
	}
}

// LoadBalances returns a copy of every balance.
func (m *MemoryStore) LoadBalances(ctx context.Context) (map[string]money.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]money.Amount, len(m.balances))
	for u, b := range m.balances {
		out[u] = b
	}
	return out, nil
}

// ApplyDeltas subtracts deltas from balances.
func (m *MemoryStore) ApplyDeltas(ctx context.Context, deltas map[string]money.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for u, d := range deltas {
		b, ok := m.balances[u]
		if !ok {
			b = m.defaultBalance
		}
		m.balances[u] = b - d
	}
	return nil
}

// Balance returns one balance.
func (m *MemoryStore) Balance(ctx context.Context, userID string) (money.Amount, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, false, ErrClosed
	}
	b, ok := m.balances[userID]
	return b, ok, nil
}

// Ping reports whether the store is open.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
