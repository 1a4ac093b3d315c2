package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports nil if the component is usable.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Liveness is the /health body.
type Liveness struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Readiness is the /ready body.
type Readiness struct {
	Status              string                 `json:"status"`
	BudgetsLoaded       int                    `json:"budgets_loaded"`
	ProvidersConfigured bool                   `json:"providers_configured"`
	Checks              map[string]CheckResult `json:"checks"`
}

// Config describes the process being probed. The funcs are read on every
// readiness request.
type Config struct {
	Service string
	Version string

	// CheckTimeout bounds each registered check. Default: 5s.
	CheckTimeout time.Duration

	// BudgetsLoaded returns the number of accounts held by the ledger.
	BudgetsLoaded func() int

	// ProvidersConfigured reports whether at least one provider has a key.
	ProvidersConfigured func() bool
}

// Checker serves liveness and readiness. Liveness never checks
// dependencies; readiness runs every registered check concurrently.
type Checker struct {
	cfg Config

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates a Checker.
func New(cfg Config) *Checker {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}
	if cfg.Service == "" {
		cfg.Service = "tollbooth"
	}
	return &Checker{
		cfg:    cfg,
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a named readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// CheckNames returns the registered check names, sorted.
func (c *Checker) CheckNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness() Liveness {
	return Liveness{
		Status:  StatusOK,
		Service: c.cfg.Service,
		Version: c.cfg.Version,
	}
}

// CheckReadiness runs all checks. The status is degraded when no provider
// is configured or any check fails.
func (c *Checker) CheckReadiness(ctx context.Context) Readiness {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	r := Readiness{
		Status: StatusReady,
		Checks: results,
	}
	if c.cfg.BudgetsLoaded != nil {
		r.BudgetsLoaded = c.cfg.BudgetsLoaded()
	}
	if c.cfg.ProvidersConfigured != nil {
		r.ProvidersConfigured = c.cfg.ProvidersConfigured()
	}

	if !r.ProvidersConfigured {
		r.Status = StatusDegraded
	}
	for _, result := range results {
		if result.Status != StatusOK {
			r.Status = StatusDegraded
		}
	}
	return r
}

// runCheck executes one check, giving up after the check timeout even if
// the check ignores its context.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.CheckTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	elapsed := func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}

	select {
	case err := <-errChan:
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), DurationMs: elapsed()}
		}
		return CheckResult{Status: StatusOK, DurationMs: elapsed()}
	case <-checkCtx.Done():
		return CheckResult{Status: StatusUnhealthy, Message: "health check timeout", DurationMs: elapsed()}
	}
}
