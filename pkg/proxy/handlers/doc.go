// Package handlers implements the HTTP endpoints of the proxy.
//
// # Admission-controlled routes
//
// CompletionHandler serves chat completions, the legacy completions alias
// and embeddings. Each request follows the same path:
//
//  1. Authenticate the internal secret (401 on failure)
//  2. Read and validate the admission fields of the body (400)
//  3. Admit: route, price the worst case and reserve it (402, 503)
//  4. Forward the untouched body to the routed provider (502 on failure)
//  5. Settle with the provider-reported usage, or release
//
// Streaming requests get stream_options.include_usage injected so the
// provider reports usage in its final frame. The stream is copied to the
// client frame by frame and settled once it ends.
//
// A failed provider call, or an answer without usage, releases the whole
// reservation. The user is never charged a guessed amount.
//
// # Budget routes
//
// BudgetHandler serves GET /v1/budget for callers and the
// /internal/budgets administration routes, which read, set and credit
// ledger entries.
//
// # Catalog
//
// ModelsHandler lists configured models whose provider has credentials.
package handlers
