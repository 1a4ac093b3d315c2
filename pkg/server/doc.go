// Package server assembles the proxy's HTTP surface and runs its listener.
//
// NewHandler mounts the routes:
//
//	POST /v1/chat/completions            admission-controlled
//	POST /v1/completions                 admission-controlled, alias of the above
//	POST /v1/embeddings                  admission-controlled
//	GET  /v1/models                      secret
//	GET  /v1/budget                      secret
//	GET  /internal/budgets/{user_id}     secret
//	PUT  /internal/budgets/{user_id}     secret
//	POST /internal/budgets/{user_id}/credit  secret
//	GET  /health, /ready, /metrics       open
//
// Server owns the listener lifecycle. Signals are handled by the caller,
// which cancels the context passed to Start:
//
//	ctx := cli.SetupSignalHandler()
//	srv := server.New(&cfg.Proxy, server.NewHandler(routes), logger)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// The ledger's final flush runs after Start returns, once no request can
// settle anymore.
package server
