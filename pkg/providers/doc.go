// Package providers forwards admitted requests to upstream LLM providers.
//
// # Overview
//
// Every provider Tollbooth talks to exposes an OpenAI-compatible API
// (OpenAI, Anthropic's compatibility endpoint, Cerebras, Google, xAI and the
// AI gateway), so a single HTTPProvider covers them all. The request body is
// passed through byte for byte; only the Authorization header and any
// configured extra headers are added.
//
// # Registry
//
// A Registry is built from the providers section of the configuration at
// boot. Only providers with an API key are registered; the router excludes
// the rest so an unconfigured provider produces "no provider" at admission
// rather than a failed upstream call.
//
//	registry := providers.NewRegistry(cfg.Providers, logger)
//	defer registry.Close()
//
//	p, err := registry.Get("openai")
//	resp, err := p.Forward(ctx, "/chat/completions", body)
//
// # Errors
//
// Forward returns three error types:
//
//   - UpstreamError for non-2xx answers, with a Hint derived from the status
//   - TimeoutError when the provider timeout expires
//   - NetworkError for transport failures
//
// ErrorHint maps any of them to the hint string used in client error bodies.
//
// # Health
//
// Health is passive. Each forwarded request updates the provider's counters,
// and three consecutive failures mark it unhealthy until the next success.
// Rate limits and 4xx payload rejections do not count against health.
package providers
