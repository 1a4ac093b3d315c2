package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/pricing"
	"tollbooth-hq/tollbooth/pkg/routing"
	"tollbooth-hq/tollbooth/pkg/usage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordingObserver struct {
	mu         sync.Mutex
	outcomes   []string
	settled    []money.Amount
	releases   []string
	violations []string
}

func (o *recordingObserver) ObserveAdmit(outcome, _ string, _ money.Amount) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveSettle(_, _ string, _ usage.Record, cost, _ money.Amount) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, cost)
}

func (o *recordingObserver) ObserveRelease(_, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.releases = append(o.releases, reason)
}

func (o *recordingObserver) ObserveInvariantViolation(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.violations = append(o.violations, stage)
}

type recordingAlarm struct {
	mu     sync.Mutex
	raised []error
}

func (a *recordingAlarm) Raise(_ context.Context, err error, _ map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raised = append(a.raised, err)
}

type fixture struct {
	ledger   *ledger.Ledger
	pipeline *Pipeline
	observer *recordingObserver
	alarm    *recordingAlarm
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	router, err := routing.NewRouter([]config.RouteConfig{
		{Pattern: "gpt-*", Provider: "openai"},
		{Pattern: "claude-*", Provider: "anthropic"},
		{Pattern: "text-embedding-*", Provider: "openai"},
		{Pattern: "unpriced-*", Provider: "openai"},
	}, []string{"openai", "anthropic"})
	require.NoError(t, err)

	table, err := pricing.NewTable([]pricing.Rule{
		{Pattern: "gpt-*", Price: pricing.Price{InputPer1K: decimal.RequireFromString("0.01"), OutputPer1K: decimal.RequireFromString("0.02")}},
		{Pattern: "claude-*", Price: pricing.Price{InputPer1K: decimal.RequireFromString("0.1"), OutputPer1K: decimal.RequireFromString("0.2")}},
		{Pattern: "text-embedding-*", Price: pricing.Price{InputPer1K: decimal.RequireFromString("0.0001")}},
	})
	require.NoError(t, err)

	f := &fixture{
		ledger:   ledger.New(1000, 4),
		observer: &recordingObserver{},
		alarm:    &recordingAlarm{},
	}
	f.pipeline = NewPipeline(Config{
		Secret:            testSecret,
		SystemUserID:      "system",
		FallbackMaxTokens: 4096,
		BytesPerToken:     2,
		MinCeiling:        5,
	}, f.ledger, router, pricing.NewCalculator(table),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(f.observer),
		WithAlarm(f.alarm),
	)
	return f
}

// chatRequest reserves 200 units: 1000 input tokens at 0.01/1K plus 500
// output tokens at 0.02/1K.
func chatRequest(user string) Request {
	return Request{
		Secret:       testSecret,
		UserID:       user,
		Model:        "gpt-test",
		MaxTokens:    500,
		PayloadBytes: 2000,
	}
}

func TestAdmit_Authentication(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		secret string
		want   error
	}{
		{"missing secret", "", ErrMissingSecret},
		{"wrong secret", "not-the-secret", ErrInvalidSecret},
		{"prefix of secret", testSecret[:31], ErrInvalidSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := chatRequest("alice")
			req.Secret = tt.secret
			_, err := f.pipeline.Admit(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, f.ledger.Len(), "rejected requests must not touch the ledger")
	assert.Equal(t, []string{OutcomeUnauthenticated, OutcomeUnauthenticated, OutcomeUnauthenticated}, f.observer.outcomes)
}

func TestAdmit_DefaultsToSystemUser(t *testing.T) {
	f := newFixture(t)

	adm, err := f.pipeline.Admit(context.Background(), chatRequest(""))
	require.NoError(t, err)
	defer adm.Close()

	assert.Equal(t, "system", adm.UserID)
	assert.Equal(t, money.Amount(800), f.ledger.BalanceOf("system"))
}

func TestAdmit_NoProvider(t *testing.T) {
	f := newFixture(t)

	req := chatRequest("alice")
	req.Model = "mistral-large"
	_, err := f.pipeline.Admit(context.Background(), req)

	require.ErrorIs(t, err, ErrNoProvider)
	assert.ErrorIs(t, err, routing.ErrUnknownModel)
	var npe *NoProviderError
	require.ErrorAs(t, err, &npe)
	assert.Equal(t, "mistral-large", npe.Model)
	assert.Equal(t, 0, f.ledger.Len())
}

func TestAdmit_NoPricingFailsClosed(t *testing.T) {
	f := newFixture(t)

	req := chatRequest("alice")
	req.Model = "unpriced-model"
	_, err := f.pipeline.Admit(context.Background(), req)

	require.ErrorIs(t, err, ErrNoPricing)
	assert.Equal(t, 0, f.ledger.Len(), "no reservation may be made for an unpriced model")
	assert.Equal(t, []string{OutcomeNoPricing}, f.observer.outcomes)
}

func TestEstimate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
		want pricing.Estimate
	}{
		{"max_completion_tokens wins", Request{MaxCompletionTokens: 100, MaxTokens: 900, PayloadBytes: 10}, pricing.Estimate{InputTokens: 5, MaxOutputTokens: 100}},
		{"max_tokens", Request{MaxTokens: 900, PayloadBytes: 10}, pricing.Estimate{InputTokens: 5, MaxOutputTokens: 900}},
		{"fallback", Request{PayloadBytes: 10}, pricing.Estimate{InputTokens: 5, MaxOutputTokens: 4096}},
		{"odd bytes round up", Request{MaxTokens: 1, PayloadBytes: 11}, pricing.Estimate{InputTokens: 6, MaxOutputTokens: 1}},
		{"embedding has no output", Request{Kind: KindEmbedding, MaxTokens: 50, PayloadBytes: 8}, pricing.Estimate{InputTokens: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.pipeline.Estimate(tt.req))
		})
	}
}

func TestAdmission_SettleChargesActualCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adm, err := f.pipeline.Admit(ctx, chatRequest("alice"))
	require.NoError(t, err)
	defer adm.Close()

	assert.Equal(t, money.Amount(200), adm.Ceiling)
	assert.Equal(t, "openai", adm.Provider)
	assert.Equal(t, money.Amount(800), f.ledger.BalanceOf("alice"))

	// 300*0.01/1000 + 200*0.02/1000 = 0.007
	s, err := adm.Settle(ctx, usage.Record{Model: "gpt-test-2025", InputTokens: 300, OutputTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(70), s.Cost)
	assert.Equal(t, money.Amount(930), s.Available)
	assert.Equal(t, StateSettled, adm.State())

	adm.Close()
	assert.Equal(t, money.Amount(930), f.ledger.BalanceOf("alice"), "close after settle must be a no-op")
	assert.Empty(t, f.observer.releases)
}

func TestAdmission_SettlePricesAdmittedModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adm, err := f.pipeline.Admit(ctx, chatRequest("alice"))
	require.NoError(t, err)
	defer adm.Close()

	s, err := adm.Settle(ctx, usage.Record{Model: "claude-opus", InputTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(100), s.Cost, "usage must be priced as gpt-test, not the reported model")
}

func TestAdmit_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var held []*Admission
	for i := 0; i < 5; i++ {
		adm, err := f.pipeline.Admit(ctx, chatRequest("bob"))
		require.NoError(t, err)
		held = append(held, adm)
	}

	_, err := f.pipeline.Admit(ctx, chatRequest("bob"))
	require.ErrorIs(t, err, ErrBudgetExhausted)
	var bee *BudgetExhaustedError
	require.ErrorAs(t, err, &bee)
	assert.Equal(t, money.Amount(0), bee.Available)
	assert.Equal(t, money.Amount(200), bee.Required)

	_, err = f.pipeline.Admit(ctx, chatRequest("carol"))
	assert.NoError(t, err, "other users are unaffected")

	for _, adm := range held {
		adm.Close()
	}
	assert.Equal(t, money.Amount(1000), f.ledger.BalanceOf("bob"))
}

func TestAdmission_CloseReleasesAbandonedReservation(t *testing.T) {
	f := newFixture(t)

	func() {
		adm, err := f.pipeline.Admit(context.Background(), chatRequest("dave"))
		require.NoError(t, err)
		defer adm.Close()
		assert.Equal(t, money.Amount(800), f.ledger.BalanceOf("dave"))
	}()

	assert.Equal(t, money.Amount(1000), f.ledger.BalanceOf("dave"))
	assert.Equal(t, []string{ReasonAbandoned}, f.observer.releases)
}

func TestAdmission_ReleaseOnUpstreamError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adm, err := f.pipeline.Admit(ctx, chatRequest("erin"))
	require.NoError(t, err)
	defer adm.Close()

	require.NoError(t, adm.Release(ctx, ReasonUpstreamError))
	assert.Equal(t, StateReleased, adm.State())
	assert.Equal(t, money.Amount(1000), f.ledger.BalanceOf("erin"))

	acct, ok := f.ledger.Account("erin")
	require.True(t, ok)
	assert.Equal(t, money.Amount(0), acct.Unflushed, "a release charges nothing")
}

func TestAdmission_InvariantViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.pipeline.Admit(ctx, chatRequest("frank"))
	require.NoError(t, err)
	defer other.Close()

	adm, err := f.pipeline.Admit(ctx, chatRequest("gina"))
	require.NoError(t, err)
	defer adm.Close()

	// Consume the token behind the admission's back.
	require.NoError(t, f.ledger.Release(adm.Token))

	_, err = adm.Settle(ctx, usage.Record{InputTokens: 10, OutputTokens: 10})
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.ErrorIs(t, err, ledger.ErrInvalidToken)

	var ive *InvariantViolationError
	require.True(t, errors.As(err, &ive))
	assert.Equal(t, "settle", ive.Stage)

	assert.Len(t, f.alarm.raised, 1)
	assert.Equal(t, []string{"settle"}, f.observer.violations)
	assert.Equal(t, money.Amount(800), f.ledger.BalanceOf("frank"), "other users must not be affected")
	assert.Equal(t, money.Amount(1000), f.ledger.BalanceOf("gina"))
}

func TestAdmit_MinCeiling(t *testing.T) {
	f := newFixture(t)

	adm, err := f.pipeline.Admit(context.Background(), Request{
		Secret:       testSecret,
		UserID:       "hank",
		Model:        "text-embedding-3-small",
		Kind:         KindEmbedding,
		PayloadBytes: 20,
	})
	require.NoError(t, err)
	defer adm.Close()

	assert.Equal(t, money.Amount(5), adm.Ceiling)
}

func TestAdmit_ConcurrentNoOverspend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var admitted []*Admission
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adm, err := f.pipeline.Admit(ctx, chatRequest("ivy"))
			if err != nil {
				return
			}
			mu.Lock()
			admitted = append(admitted, adm)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, admitted, 5)
	for _, adm := range admitted {
		_, err := adm.Settle(ctx, usage.Record{InputTokens: 1000, OutputTokens: 500})
		require.NoError(t, err)
	}
	assert.Equal(t, money.Amount(0), f.ledger.BalanceOf("ivy"))
}

func TestAdmission_ResolvesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adm, err := f.pipeline.Admit(ctx, chatRequest("jack"))
	require.NoError(t, err)

	_, err = adm.Settle(ctx, usage.Record{InputTokens: 300, OutputTokens: 200})
	require.NoError(t, err)

	err = adm.Release(ctx, ReasonUpstreamError)
	require.ErrorIs(t, err, ErrAlreadyResolved)
	assert.NotErrorIs(t, err, ErrInvariantViolation)

	_, err = adm.Settle(ctx, usage.Record{InputTokens: 300})
	require.ErrorIs(t, err, ErrAlreadyResolved)

	assert.Equal(t, money.Amount(930), f.ledger.BalanceOf("jack"))
	assert.Empty(t, f.observer.violations)
	assert.Empty(t, f.alarm.raised)
}

func TestAdmission_CloseRacingSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		adm, err := f.pipeline.Admit(ctx, chatRequest("kate"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = adm.Settle(ctx, usage.Record{})
		}()
		go func() {
			defer wg.Done()
			adm.Close()
		}()
		wg.Wait()

		assert.NotEqual(t, StateReserved, adm.State())
	}

	f.observer.mu.Lock()
	defer f.observer.mu.Unlock()
	assert.Empty(t, f.observer.violations, "losing the race must not look like a ledger bug")
	assert.Empty(t, f.alarm.raised)
	assert.Equal(t, 50, len(f.observer.settled)+len(f.observer.releases))

	acct, ok := f.ledger.Account("kate")
	require.True(t, ok)
	assert.Zero(t, acct.Holds)
	assert.Equal(t, money.Amount(1000), f.ledger.BalanceOf("kate"), "zero-usage settles charge nothing")
}
