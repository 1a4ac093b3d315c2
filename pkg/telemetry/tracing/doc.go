// Package tracing provides OpenTelemetry tracing for Tollbooth.
//
// New installs a global tracer provider exporting over OTLP gRPC. The
// admission pipeline and the HTTP middleware create spans through it:
//
//	proxy.request
//	├── admission.admit
//	│   └── ledger.reserve
//	├── proxy.forward
//	└── ledger.settle
//
// Span attributes use the tollbooth.* namespace (see attributes.go). Only
// ids, models, token counts and amounts are recorded, never request or
// response content.
//
// # Sampling
//
// The sampler is "always", "never" or "ratio", wrapped in ParentBased so a
// caller that propagates traceparent keeps its own decision:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// When disabled, a noop tracer is used and nothing is exported.
package tracing
