// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its ServeMux as:
//
//	handler = RequestID(Recovery(Logging(Tracing(mux))))
//
// Order (outermost to innermost):
//  1. RequestID: assign or propagate X-Request-ID, store it in the log context
//  2. Recovery: turn panics into a 500 error body
//  3. Logging: log and count each completed request
//  4. Tracing: start the proxy.request span; must wrap the mux directly
//     so the matched route pattern is visible
//
// RequireSecret is applied per route rather than globally: completion
// routes authenticate inside the admission pipeline, and /health, /ready
// and /metrics are open.
//
// # Streaming
//
// The status-capturing writer used by Logging and Tracing implements
// http.Flusher and Unwrap, so server-sent events pass through unbuffered.
package middleware
