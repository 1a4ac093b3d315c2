// Package metrics exposes Tollbooth's Prometheus metrics.
//
// # Metrics Categories
//
//   - Request metrics: inbound HTTP requests by route and status
//   - Provider metrics: upstream calls, latency and passive health
//   - Admission metrics: outcomes, ceilings, settled spend, tokens, releases
//     and invariant violations
//   - Ledger metrics: flush results and deltas waiting to be flushed
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RegisterLedgerSize(ledger.Len)
//
//	pipeline := admission.NewPipeline(..., admission.WithObserver(collector))
//	flusher := flusher.New(..., flusher.WithObserver(collector))
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Each collector owns its registry, so tests can build as many as they like
// without colliding on the global Prometheus registry.
package metrics
