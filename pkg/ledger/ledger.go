package ledger

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tollbooth-hq/tollbooth/pkg/money"
)

// DefaultShards is the shard count used when New is given a non-positive one.
const DefaultShards = 64

var (
	// ErrInsufficientFunds is returned by Reserve when the available balance
	// does not cover the ceiling.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidToken is returned when a token is unknown or already consumed.
	ErrInvalidToken = errors.New("invalid or consumed reservation token")

	// ErrInvalidAmount is returned for amounts outside an operation's domain.
	ErrInvalidAmount = errors.New("invalid amount")
)

// InsufficientFundsError reports how far a reservation fell short.
type InsufficientFundsError struct {
	UserID    string
	Available money.Amount
	Required  money.Amount
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for user %s: available %s, required %s", e.UserID, e.Available, e.Required)
}

// Is implements error matching for errors.Is().
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Token identifies one outstanding reservation. It is consumed exactly once,
// by either Settle or Release.
type Token struct {
	ID     uuid.UUID
	UserID string
}

// String returns the token id.
func (t Token) String() string { return t.ID.String() }

// Account is a point-in-time view of one user's entry.
type Account struct {
	UserID    string
	Balance   money.Amount
	Reserved  money.Amount
	Unflushed money.Amount
	Holds     int
}

// Available is the balance minus outstanding reservations.
func (a Account) Available() money.Amount { return a.Balance - a.Reserved }

type entry struct {
	mu        sync.Mutex
	balance   money.Amount
	reserved  money.Amount
	unflushed money.Amount
	holds     map[uuid.UUID]money.Amount
}

func newEntry(balance money.Amount) *entry {
	return &entry{balance: balance, holds: make(map[uuid.UUID]money.Amount)}
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Ledger is the in-memory authority on spendable balances. Every balance
// mutation happens under a single user's entry lock; shard locks are held
// only to find or insert an entry.
type Ledger struct {
	shards         []*shard
	defaultBalance money.Amount
}

// New creates an empty ledger. Users not yet known start at defaultBalance.
func New(defaultBalance money.Amount, shards int) *Ledger {
	if shards <= 0 {
		shards = DefaultShards
	}
	l := &Ledger{
		shards:         make([]*shard, shards),
		defaultBalance: defaultBalance,
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return l
}

// DefaultBalance returns the starting balance of unknown users.
func (l *Ledger) DefaultBalance() money.Amount { return l.defaultBalance }

func (l *Ledger) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

func (l *Ledger) lookup(userID string) (*entry, bool) {
	s := l.shardFor(userID)
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	return e, ok
}

func (l *Ledger) getOrCreate(userID string) *entry {
	if e, ok := l.lookup(userID); ok {
		return e
	}
	s := l.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e
	}
	e := newEntry(l.defaultBalance)
	s.entries[userID] = e
	return e
}

// Reserve places a hold of ceiling on the user's balance. It fails with an
// InsufficientFundsError, and mutates nothing, when balance minus existing
// holds is below ceiling.
func (l *Ledger) Reserve(userID string, ceiling money.Amount) (Token, error) {
	if ceiling < 0 {
		return Token{}, fmt.Errorf("reserve %s: %w", ceiling, ErrInvalidAmount)
	}

	e := l.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if avail := e.balance - e.reserved; avail < ceiling {
		return Token{}, &InsufficientFundsError{UserID: userID, Available: avail, Required: ceiling}
	}

	tok := Token{ID: uuid.New(), UserID: userID}
	e.holds[tok.ID] = ceiling
	e.reserved += ceiling
	return tok, nil
}

// Settle consumes the token's hold and charges actual. The charge may exceed
// the ceiling and may drive the balance negative. It returns the available
// balance after the charge.
func (l *Ledger) Settle(tok Token, actual money.Amount) (money.Amount, error) {
	if actual < 0 {
		return 0, fmt.Errorf("settle %s: %w", actual, ErrInvalidAmount)
	}

	e, ok := l.lookup(tok.UserID)
	if !ok {
		return 0, ErrInvalidToken
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ceiling, ok := e.holds[tok.ID]
	if !ok {
		return 0, ErrInvalidToken
	}
	delete(e.holds, tok.ID)
	e.reserved -= ceiling
	e.balance -= actual
	e.unflushed += actual
	return e.balance - e.reserved, nil
}

// Release consumes the token's hold without charging.
func (l *Ledger) Release(tok Token) error {
	e, ok := l.lookup(tok.UserID)
	if !ok {
		return ErrInvalidToken
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ceiling, ok := e.holds[tok.ID]
	if !ok {
		return ErrInvalidToken
	}
	delete(e.holds, tok.ID)
	e.reserved -= ceiling
	return nil
}

// BalanceOf returns balance minus outstanding holds. Unknown users read as
// the default balance without being added to the ledger.
func (l *Ledger) BalanceOf(userID string) money.Amount {
	e, ok := l.lookup(userID)
	if !ok {
		return l.defaultBalance
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance - e.reserved
}

// Account returns a view of one user's entry and whether it exists.
func (l *Ledger) Account(userID string) (Account, bool) {
	e, ok := l.lookup(userID)
	if !ok {
		return Account{UserID: userID, Balance: l.defaultBalance}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account(userID), true
}

func (e *entry) account(userID string) Account {
	return Account{
		UserID:    userID,
		Balance:   e.balance,
		Reserved:  e.reserved,
		Unflushed: e.unflushed,
		Holds:     len(e.holds),
	}
}

// Credit adds amt to the user's balance. The store sees it as a negative
// delta on the next flush.
func (l *Ledger) Credit(userID string, amt money.Amount) (money.Amount, error) {
	if amt <= 0 {
		return 0, fmt.Errorf("credit %s: %w", amt, ErrInvalidAmount)
	}

	e := l.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balance += amt
	e.unflushed -= amt
	return e.balance - e.reserved, nil
}

// SetBalance overwrites the user's balance and records the difference as a
// delta, so the store converges on the next flush. It returns the previous
// balance.
func (l *Ledger) SetBalance(userID string, balance money.Amount) (money.Amount, error) {
	if balance < 0 {
		return 0, fmt.Errorf("set balance %s: %w", balance, ErrInvalidAmount)
	}

	e := l.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.balance
	e.unflushed += old - balance
	e.balance = balance
	return old, nil
}

// DrainDeltas atomically takes every non-zero unflushed delta, resetting
// each to zero. Each entry is drained under its own lock, so a concurrent
// settle lands either in the returned map or in the next drain.
func (l *Ledger) DrainDeltas() map[string]money.Amount {
	out := make(map[string]money.Amount)
	l.forEach(func(userID string, e *entry) {
		e.mu.Lock()
		if e.unflushed != 0 {
			out[userID] = e.unflushed
			e.unflushed = 0
		}
		e.mu.Unlock()
	})
	return out
}

// MergeDeltas adds deltas back after a failed flush.
func (l *Ledger) MergeDeltas(deltas map[string]money.Amount) {
	for userID, d := range deltas {
		if d == 0 {
			continue
		}
		e := l.getOrCreate(userID)
		e.mu.Lock()
		e.unflushed += d
		e.mu.Unlock()
	}
}

// PendingDeltas returns the sum of unflushed deltas and how many users
// carry one.
func (l *Ledger) PendingDeltas() (total money.Amount, users int) {
	l.forEach(func(_ string, e *entry) {
		e.mu.Lock()
		if e.unflushed != 0 {
			total += e.unflushed
			users++
		}
		e.mu.Unlock()
	})
	return total, users
}

// Hydrate installs balances loaded from the durable store. Installed entries
// start with no holds and no unflushed delta. It is meant to run once, before
// the ledger serves requests.
func (l *Ledger) Hydrate(balances map[string]money.Amount) {
	for userID, b := range balances {
		s := l.shardFor(userID)
		s.mu.Lock()
		s.entries[userID] = newEntry(b)
		s.mu.Unlock()
	}
}

// Snapshot returns every entry sorted by user id.
func (l *Ledger) Snapshot() []Account {
	var out []Account
	l.forEach(func(userID string, e *entry) {
		e.mu.Lock()
		out = append(out, e.account(userID))
		e.mu.Unlock()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len returns the number of users in the ledger.
func (l *Ledger) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// forEach visits every entry. The shard lock is released before fn runs so
// fn may take the entry lock.
func (l *Ledger) forEach(fn func(userID string, e *entry)) {
	type kv struct {
		id string
		e  *entry
	}
	for _, s := range l.shards {
		s.mu.RLock()
		batch := make([]kv, 0, len(s.entries))
		for id, e := range s.entries {
			batch = append(batch, kv{id, e})
		}
		s.mu.RUnlock()
		for _, it := range batch {
			fn(it.id, it.e)
		}
	}
}
