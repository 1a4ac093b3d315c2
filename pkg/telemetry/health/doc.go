// Package health serves the liveness and readiness probes.
//
//   - /health answers 200 while the process runs. It never touches a
//     dependency, so a store outage cannot get the pod restarted.
//   - /ready reports how many budgets the ledger holds, whether any provider
//     is configured, and the result of each registered check. It answers 503
//     while degraded.
//
// Usage:
//
//	checker := health.New(health.Config{
//	    Version:             version,
//	    BudgetsLoaded:       ledger.Len,
//	    ProvidersConfigured: func() bool { return registry.Len() > 0 },
//	})
//	checker.RegisterCheck("store", store.Ping)
//	checker.Register(mux)
package health
