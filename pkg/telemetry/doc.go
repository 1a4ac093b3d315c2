// Package telemetry groups Tollbooth's observability packages.
//
//   - logging: slog construction, request-scoped fields and secret redaction
//   - metrics: the Prometheus collector for admission, ledger and upstream
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness probes
//   - alerts: Sentry reporting of ledger invariant violations
//
// None of these packages ever see request or response content.
package telemetry
