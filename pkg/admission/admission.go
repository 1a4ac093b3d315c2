package admission

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// Release reasons, used in logs and the releases metric.
const (
	ReasonUpstreamError = "upstream_error"
	ReasonNoUsage       = "no_usage"
	ReasonBadRequest    = "bad_request"
	ReasonAbandoned     = "abandoned"
	ReasonUnpriced      = "unpriced"
)

// State is where an admission is in its lifecycle.
type State int

const (
	// StateReserved means the ceiling is held and nothing resolved it yet.
	StateReserved State = iota
	StateSettled
	StateReleased
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSettled:
		return "settled"
	case StateReleased:
		return "released"
	default:
		return "reserved"
	}
}

// Settlement is the outcome of a successful settle.
type Settlement struct {
	Usage usage.Record

	// Cost is what the user was charged.
	Cost money.Amount

	// Available is the user's balance minus outstanding holds afterwards.
	Available money.Amount
}

// Admission owns one reservation. Exactly one of Settle or Release should
// run; Close releases the hold if neither did.
type Admission struct {
	UserID   string
	Model    string
	Provider string
	Ceiling  money.Amount
	Token    ledger.Token

	pipeline *Pipeline

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (a *Admission) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// resolve moves the admission out of StateReserved. Only the first caller
// wins; it alone may touch the ledger.
func (a *Admission) resolve(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateReserved {
		return &AlreadyResolvedError{State: a.state}
	}
	a.state = to
	return nil
}

// Settle charges the cost of rec, priced as the admitted model, and frees
// the rest of the ceiling.
func (a *Admission) Settle(ctx context.Context, rec usage.Record) (Settlement, error) {
	p := a.pipeline
	_, span := p.tracer.Start(ctx, "ledger.settle")
	defer span.End()

	cost, err := p.pricer.Cost(a.Model, rec)
	if err != nil {
		if rerr := a.Release(ctx, ReasonUnpriced); rerr != nil {
			return Settlement{}, rerr
		}
		return Settlement{}, fmt.Errorf("failed to price usage for %s: %w", a.Model, err)
	}

	if err := a.resolve(StateSettled); err != nil {
		return Settlement{}, err
	}

	avail, err := p.ledger.Settle(a.Token, cost)
	if err != nil {
		return Settlement{}, p.violation(ctx, a, "settle", err)
	}

	span.SetAttributes(
		attribute.Int64("tollbooth.tokens.input", rec.InputTokens),
		attribute.Int64("tollbooth.tokens.output", rec.OutputTokens),
		attribute.Int64("tollbooth.cost_units", int64(cost)),
	)
	p.observer.ObserveSettle(a.Provider, a.Model, rec, cost, a.Ceiling)

	if cost > a.Ceiling {
		p.logger.Warn("actual cost exceeded reserved ceiling",
			"user_id", a.UserID,
			"model", a.Model,
			"ceiling", a.Ceiling.USD(),
			"cost", cost.USD(),
		)
	}
	p.logger.Info("request settled",
		"user_id", a.UserID,
		"model", a.Model,
		"provider", a.Provider,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens,
		"cost", cost.USD(),
		"available", avail.USD(),
	)

	return Settlement{Usage: rec, Cost: cost, Available: avail}, nil
}

// Release returns the whole ceiling without charging.
func (a *Admission) Release(ctx context.Context, reason string) error {
	p := a.pipeline

	if err := a.resolve(StateReleased); err != nil {
		return err
	}

	if err := p.ledger.Release(a.Token); err != nil {
		return p.violation(ctx, a, "release", err)
	}

	p.observer.ObserveRelease(a.Provider, reason)
	p.logger.Info("reservation released",
		"user_id", a.UserID,
		"model", a.Model,
		"provider", a.Provider,
		"reason", reason,
	)
	return nil
}

// Close releases the reservation if it is still held. It is safe to call
// more than once, concurrently with Settle or Release, and is meant to be
// deferred right after Admit.
func (a *Admission) Close() {
	// The request context may already be cancelled; the release must not be.
	_ = a.Release(context.Background(), ReasonAbandoned)
}
