package admission

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/pricing"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// Ledger is the subset of *ledger.Ledger the pipeline needs.
type Ledger interface {
	Reserve(userID string, ceiling money.Amount) (ledger.Token, error)
	Settle(tok ledger.Token, actual money.Amount) (money.Amount, error)
	Release(tok ledger.Token) error
}

// Router resolves a model to a provider id.
type Router interface {
	Route(model string) (string, error)
}

// Pricer prices requests before and after forwarding.
type Pricer interface {
	Ceiling(model string, est pricing.Estimate) (money.Amount, error)
	Cost(model string, rec usage.Record) (money.Amount, error)
}

// Alarm is raised on invariant violations. Implementations must not block.
type Alarm interface {
	Raise(ctx context.Context, err error, tags map[string]string)
}

// Observer receives admission outcomes for metrics.
type Observer interface {
	ObserveAdmit(outcome, provider string, ceiling money.Amount)
	ObserveSettle(provider, model string, rec usage.Record, cost, ceiling money.Amount)
	ObserveRelease(provider, reason string)
	ObserveInvariantViolation(stage string)
}

// Admission outcomes reported to the Observer.
const (
	OutcomeAdmitted        = "admitted"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeNoProvider      = "no_provider"
	OutcomeNoPricing       = "no_pricing"
	OutcomeBudgetExhausted = "budget_exhausted"
	OutcomeError           = "error"
)

// Config holds the admission settings resolved from configuration.
type Config struct {
	// Secret is the shared internal secret callers must present.
	Secret string

	// SystemUserID is charged when the caller sends no user id.
	SystemUserID string

	// FallbackMaxTokens is the output budget assumed when a request sets
	// neither max_completion_tokens nor max_tokens.
	FallbackMaxTokens int64

	// BytesPerToken converts payload size into an input token estimate.
	BytesPerToken int64

	// MinCeiling is the smallest amount ever reserved.
	MinCeiling money.Amount
}

// Kind distinguishes request shapes that estimate differently.
type Kind int

const (
	// KindChat covers chat and legacy completions.
	KindChat Kind = iota

	// KindEmbedding produces no output tokens.
	KindEmbedding
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindEmbedding {
		return "embedding"
	}
	return "chat"
}

// Request is what the pipeline needs to know about an inbound call. The
// body itself never reaches the pipeline.
type Request struct {
	Secret string
	UserID string
	Model  string
	Kind   Kind

	// MaxCompletionTokens and MaxTokens are 0 when the request omits them.
	MaxCompletionTokens int64
	MaxTokens           int64

	// PayloadBytes is the size of the request body.
	PayloadBytes int
}

// Pipeline runs authentication, routing and reservation for each request,
// and hands back an Admission that owns the reservation.
//
// A Pipeline is immutable and safe for concurrent use.
type Pipeline struct {
	cfg      Config
	ledger   Ledger
	router   Router
	pricer   Pricer
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
	alarm    Alarm
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithAlarm sets the invariant-violation alarm.
func WithAlarm(a Alarm) Option {
	return func(p *Pipeline) { p.alarm = a }
}

// WithTracer sets the tracer. The global OpenTelemetry tracer is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config, l Ledger, r Router, pr Pricer, opts ...Option) *Pipeline {
	if cfg.SystemUserID == "" {
		cfg.SystemUserID = "system"
	}
	if cfg.BytesPerToken <= 0 {
		cfg.BytesPerToken = 2
	}
	if cfg.FallbackMaxTokens <= 0 {
		cfg.FallbackMaxTokens = 4096
	}

	p := &Pipeline{
		cfg:      cfg,
		ledger:   l,
		router:   r,
		pricer:   pr,
		logger:   slog.Default(),
		observer: nopObserver{},
		alarm:    nopAlarm{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("tollbooth/admission")
	}
	p.logger = p.logger.With("component", "admission")
	return p
}

// Authenticate checks the internal secret in constant time.
func (p *Pipeline) Authenticate(secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(p.cfg.Secret)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}

// UserID returns the user a request is charged to.
func (p *Pipeline) UserID(header string) string {
	if header == "" {
		return p.cfg.SystemUserID
	}
	return header
}

// Estimate returns the worst-case token shape of req.
func (p *Pipeline) Estimate(req Request) pricing.Estimate {
	in := int64(req.PayloadBytes) / p.cfg.BytesPerToken
	if int64(req.PayloadBytes)%p.cfg.BytesPerToken != 0 {
		in++
	}

	if req.Kind == KindEmbedding {
		return pricing.Estimate{InputTokens: in}
	}

	out := req.MaxCompletionTokens
	if out <= 0 {
		out = req.MaxTokens
	}
	if out <= 0 {
		out = p.cfg.FallbackMaxTokens
	}
	return pricing.Estimate{InputTokens: in, MaxOutputTokens: out}
}

// Admit authenticates, routes and reserves. On success the caller must
// defer Admission.Close so the reservation is resolved on every exit path.
func (p *Pipeline) Admit(ctx context.Context, req Request) (*Admission, error) {
	ctx, span := p.tracer.Start(ctx, "admission.admit",
		trace.WithAttributes(
			attribute.String("tollbooth.model", req.Model),
			attribute.String("tollbooth.kind", req.Kind.String()),
		),
	)
	defer span.End()

	adm, outcome, err := p.admit(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(attribute.String("tollbooth.outcome", outcome))
		p.observer.ObserveAdmit(outcome, "", 0)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("tollbooth.outcome", outcome),
		attribute.String("tollbooth.provider", adm.Provider),
		attribute.String("tollbooth.user", adm.UserID),
		attribute.Int64("tollbooth.ceiling_units", int64(adm.Ceiling)),
	)
	p.observer.ObserveAdmit(outcome, adm.Provider, adm.Ceiling)
	return adm, nil
}

func (p *Pipeline) admit(ctx context.Context, req Request) (*Admission, string, error) {
	if err := p.Authenticate(req.Secret); err != nil {
		p.logger.Debug("request rejected", "reason", err.Error())
		return nil, OutcomeUnauthenticated, err
	}
	userID := p.UserID(req.UserID)

	provider, err := p.router.Route(req.Model)
	if err != nil {
		p.logger.Info("no provider for model", "model", req.Model, "user_id", userID)
		return nil, OutcomeNoProvider, &NoProviderError{Model: req.Model, Cause: err}
	}

	ceiling, err := p.pricer.Ceiling(req.Model, p.Estimate(req))
	if err != nil {
		if errors.Is(err, ErrNoPricing) {
			p.logger.Warn("model has no pricing rule", "model", req.Model, "provider", provider)
			return nil, OutcomeNoPricing, err
		}
		return nil, OutcomeError, err
	}
	if ceiling < p.cfg.MinCeiling {
		ceiling = p.cfg.MinCeiling
	}

	_, span := p.tracer.Start(ctx, "ledger.reserve")
	tok, err := p.ledger.Reserve(userID, ceiling)
	span.End()
	if err != nil {
		var insufficient *ledger.InsufficientFundsError
		if errors.As(err, &insufficient) {
			p.logger.Info("budget exhausted",
				"user_id", userID,
				"model", req.Model,
				"available", insufficient.Available.USD(),
				"ceiling", ceiling.USD(),
			)
			return nil, OutcomeBudgetExhausted, &BudgetExhaustedError{
				UserID:    userID,
				Model:     req.Model,
				Available: insufficient.Available,
				Required:  ceiling,
			}
		}
		return nil, OutcomeError, err
	}

	p.logger.Debug("request admitted",
		"user_id", userID,
		"model", req.Model,
		"provider", provider,
		"ceiling", ceiling.USD(),
	)

	return &Admission{
		UserID:   userID,
		Model:    req.Model,
		Provider: provider,
		Ceiling:  ceiling,
		Token:    tok,
		pipeline: p,
	}, OutcomeAdmitted, nil
}

// violation logs, counts and alarms on an invariant violation.
func (p *Pipeline) violation(ctx context.Context, a *Admission, stage string, cause error) error {
	err := &InvariantViolationError{
		Stage:  stage,
		UserID: a.UserID,
		Token:  a.Token.String(),
		Cause:  cause,
	}
	p.logger.Error("ledger invariant violation",
		"stage", stage,
		"user_id", a.UserID,
		"model", a.Model,
		"provider", a.Provider,
		"token", a.Token.String(),
		"error", cause,
	)
	p.observer.ObserveInvariantViolation(stage)
	p.alarm.Raise(ctx, err, map[string]string{
		"stage":    stage,
		"user_id":  a.UserID,
		"provider": a.Provider,
		"model":    a.Model,
	})
	return err
}

type nopObserver struct{}

func (nopObserver) ObserveAdmit(string, string, money.Amount)                             {}
func (nopObserver) ObserveSettle(string, string, usage.Record, money.Amount, money.Amount) {}
func (nopObserver) ObserveRelease(string, string)                                          {}
func (nopObserver) ObserveInvariantViolation(string)                                       {}

type nopAlarm struct{}

func (nopAlarm) Raise(context.Context, error, map[string]string) {}
