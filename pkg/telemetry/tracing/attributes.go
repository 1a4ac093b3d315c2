package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// Attribute keys in the tollbooth.* namespace. User ids are opaque and may
// be recorded; secrets and payload content never are.
const (
	AttrProvider  = "tollbooth.provider"
	AttrModel     = "tollbooth.model"
	AttrRequestID = "tollbooth.request_id"
	AttrUser      = "tollbooth.user_id"
	AttrStream    = "tollbooth.stream"

	AttrTokensInput  = "tollbooth.tokens.input"
	AttrTokensOutput = "tollbooth.tokens.output"

	AttrCeilingUSD = "tollbooth.ceiling_usd"
	AttrCostUSD    = "tollbooth.cost_usd"
	AttrOutcome    = "tollbooth.outcome"
	AttrErrorType  = "tollbooth.error.type"
	AttrErrorHint  = "tollbooth.error.hint"
)

// SetRouteAttributes records where a request was sent.
func SetRouteAttributes(span trace.Span, provider, model string, stream bool) {
	span.SetAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
		attribute.Bool(AttrStream, stream),
	)
}

// SetUsageAttributes records settled tokens and cost.
func SetUsageAttributes(span trace.Span, rec usage.Record, cost money.Amount) {
	span.SetAttributes(
		attribute.Int64(AttrTokensInput, rec.InputTokens),
		attribute.Int64(AttrTokensOutput, rec.OutputTokens),
		attribute.String(AttrCostUSD, cost.USD()),
	)
}
