package handlers

import (
	"context"
	"time"

	"tollbooth-hq/tollbooth/pkg/admission"
	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/providers"
)

// Admitter runs the admission pipeline. *admission.Pipeline implements it.
type Admitter interface {
	Authenticate(secret string) error
	UserID(header string) string
	Admit(ctx context.Context, req admission.Request) (*admission.Admission, error)
}

// ProviderSource looks up the provider an admission was routed to.
// *providers.Registry implements it.
type ProviderSource interface {
	Get(name string) (providers.Provider, error)
}

// UpstreamRecorder receives one observation per upstream call.
type UpstreamRecorder interface {
	RecordUpstream(provider, outcome string, latency time.Duration, healthy bool)
}

// BudgetLedger is the subset of *ledger.Ledger used by the budget routes.
type BudgetLedger interface {
	BalanceOf(userID string) money.Amount
	Account(userID string) (ledger.Account, bool)
	Credit(userID string, amt money.Amount) (money.Amount, error)
	SetBalance(userID string, balance money.Amount) (money.Amount, error)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpstream(string, string, time.Duration, bool) {}
