// Package flusher moves spend deltas from the in-memory ledger into the
// durable store on a fixed schedule, and loads balances at boot.
//
// Each tick drains every pending delta, applies the batch to the store and
// retries with exponential backoff inside the tick's retry budget. If the
// store stays unreachable the drained deltas are merged back into the
// ledger, so they ride along with the next tick. Delivery is at-least-once
// per tick; a batch is never split.
package flusher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"

	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/store"
)

// Ledger is the part of the budget ledger the flusher needs.
type Ledger interface {
	DrainDeltas() map[string]money.Amount
	MergeDeltas(map[string]money.Amount)
	Hydrate(map[string]money.Amount)
	PendingDeltas() (total money.Amount, users int)
}

// Observer receives flush outcomes, typically for metrics.
type Observer interface {
	ObserveFlush(ok bool, users int, total money.Amount, elapsed time.Duration)

	// ObservePending reports the spend still waiting for the store after
	// each tick: deltas merged back by a failed flush plus anything charged
	// while the write was in flight.
	ObservePending(users int, total money.Amount)
}

// Config controls scheduling and retries.
type Config struct {
	// Interval between ticks. Values below one second are rounded up.
	Interval time.Duration

	// RetryInitialInterval is the first backoff delay within a tick.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff delay.
	RetryMaxInterval time.Duration

	// RetryMaxElapsed is the retry budget of one tick.
	RetryMaxElapsed time.Duration
}

// Result summarizes one successful flush.
type Result struct {
	Users int
	Total money.Amount
}

// Status is a snapshot of the flusher's state for health reporting.
type Status struct {
	Running     bool
	Hydrated    bool
	LastSuccess time.Time
	LastError   string
	Failures    int
}

// Flusher periodically persists ledger deltas.
type Flusher struct {
	ledger   Ledger
	store    store.Store
	cfg      Config
	logger   *slog.Logger
	observer Observer

	cron    *cron.Cron
	flushMu sync.Mutex

	mu       sync.Mutex
	running  bool
	baseCtx  context.Context
	hydrated bool
	lastOK   time.Time
	lastErr  error
	failures int
}

// Option configures a Flusher.
type Option func(*Flusher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flusher) { f.logger = l.With("component", "flusher") }
}

// WithObserver sets the flush observer.
func WithObserver(o Observer) Option {
	return func(f *Flusher) { f.observer = o }
}

// New creates a flusher. Zero config values fall back to the defaults
// 30s, 500ms, 5s and 15s.
func New(l Ledger, s store.Store, cfg Config, opts ...Option) *Flusher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 5 * time.Second
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 15 * time.Second
	}

	f := &Flusher{
		ledger: l,
		store:  s,
		cfg:    cfg,
		logger: slog.Default().With("component", "flusher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{f.logger})))
	return f
}

// Hydrate loads every persisted balance into the ledger, retrying until it
// succeeds or ctx expires. It returns the number of balances loaded.
func (f *Flusher) Hydrate(ctx context.Context) (int, error) {
	start := time.Now()
	balances, err := backoff.Retry(ctx, func() (map[string]money.Amount, error) {
		return f.store.LoadBalances(ctx)
	},
		backoff.WithBackOff(f.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.logger.Warn("loading balances failed, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("hydrate ledger: %w", err)
	}

	f.ledger.Hydrate(balances)

	f.mu.Lock()
	f.hydrated = true
	f.mu.Unlock()

	f.logger.Info("ledger hydrated", "users", len(balances), "duration", time.Since(start))
	return len(balances), nil
}

// Start schedules the periodic flush. Ticks never overlap; a tick that finds
// the previous one still running is skipped.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return errors.New("flusher already started")
	}

	spec := fmt.Sprintf("@every %s", f.cfg.Interval)
	if _, err := f.cron.AddFunc(spec, f.tick); err != nil {
		return fmt.Errorf("failed to schedule flush: %w", err)
	}

	f.baseCtx = context.WithoutCancel(ctx)
	f.cron.Start()
	f.running = true

	f.logger.Info("flusher started", "interval", f.cfg.Interval)
	return nil
}

func (f *Flusher) tick() {
	f.mu.Lock()
	ctx := f.baseCtx
	f.mu.Unlock()

	// The retry budget bounds the whole tick, plus headroom for the final attempt.
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RetryMaxElapsed+f.cfg.RetryMaxInterval)
	defer cancel()

	_, _ = f.FlushOnce(ctx)
}

// FlushOnce drains and persists pending deltas. On failure the deltas are
// merged back into the ledger and the error is returned; it is never
// surfaced to request callers.
func (f *Flusher) FlushOnce(ctx context.Context) (Result, error) {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	deltas := f.ledger.DrainDeltas()
	if len(deltas) == 0 {
		f.recordSuccess(Result{}, 0)
		return Result{}, nil
	}

	res := Result{Users: len(deltas)}
	for _, d := range deltas {
		res.Total += d
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.store.ApplyDeltas(ctx, deltas)
	},
		backoff.WithBackOff(f.newBackOff()),
		backoff.WithMaxElapsedTime(f.cfg.RetryMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.logger.Warn("flush attempt failed, retrying", "error", err, "users", res.Users, "retry_in", next)
		}),
	)
	elapsed := time.Since(start)

	if err != nil {
		f.ledger.MergeDeltas(deltas)
		f.recordFailure(err, res, elapsed)
		return Result{}, fmt.Errorf("flush %d deltas: %w", res.Users, err)
	}

	f.recordSuccess(res, elapsed)
	return res, nil
}

// Stop stops the schedule, waits for a running tick and performs one final
// flush bounded by ctx.
func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	wasRunning := f.running
	f.running = false
	f.mu.Unlock()

	if wasRunning {
		select {
		case <-f.cron.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for running flush: %w", ctx.Err())
		}
	}

	res, err := f.FlushOnce(ctx)
	if err != nil {
		f.logger.Error("final flush failed, unflushed spend is lost", "error", err)
		return err
	}
	f.logger.Info("final flush completed", "users", res.Users, "total", res.Total.String())
	return nil
}

// Status returns the current state.
func (f *Flusher) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Status{
		Running:     f.running,
		Hydrated:    f.hydrated,
		LastSuccess: f.lastOK,
		Failures:    f.failures,
	}
	if f.lastErr != nil {
		s.LastError = f.lastErr.Error()
	}
	return s
}

// MarkHydrated records that the ledger is serving without a successful
// hydration, e.g. after the boot deadline passed.
func (f *Flusher) MarkHydrated(ok bool) {
	f.mu.Lock()
	f.hydrated = ok
	f.mu.Unlock()
}

func (f *Flusher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.RetryInitialInterval
	b.MaxInterval = f.cfg.RetryMaxInterval
	return b
}

func (f *Flusher) recordSuccess(res Result, elapsed time.Duration) {
	f.mu.Lock()
	f.lastOK = time.Now()
	f.lastErr = nil
	f.failures = 0
	f.mu.Unlock()

	if res.Users > 0 {
		f.logger.Info("flushed deltas", "users", res.Users, "total", res.Total.String(), "duration", elapsed)
	}
	if f.observer != nil {
		if res.Users > 0 {
			f.observer.ObserveFlush(true, res.Users, res.Total, elapsed)
		}
		f.observePending()
	}
}

func (f *Flusher) recordFailure(err error, res Result, elapsed time.Duration) {
	f.mu.Lock()
	f.lastErr = err
	f.failures++
	failures := f.failures
	f.mu.Unlock()

	f.logger.Error("flush failed, deltas kept for next tick",
		"error", err,
		"users", res.Users,
		"total", res.Total.String(),
		"consecutive_failures", failures,
	)
	if f.observer != nil {
		f.observer.ObserveFlush(false, res.Users, res.Total, elapsed)
		f.observePending()
	}
}

func (f *Flusher) observePending() {
	total, users := f.ledger.PendingDeltas()
	f.observer.ObservePending(users, total)
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
