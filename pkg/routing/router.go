// Package routing maps a requested model name to the provider that serves it.
//
// Routes are an ordered pattern table (see package pattern): exact model
// names win, then wildcard routes in configuration order. Routes whose
// provider has no credentials are dropped when the router is built, so a
// later route, such as the gateway, can pick the model up instead.
//
//	router, err := routing.NewRouter(cfg.Routes, cfg.AvailableProviders())
//	provider, err := router.Route("gpt-4o-mini") // "openai"
package routing

import (
	"fmt"
	"sort"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/pattern"
)

// Decision is the outcome of routing one model.
type Decision struct {
	// Provider is the id of the selected provider.
	Provider string

	// Pattern is the route pattern that matched.
	Pattern string
}

// Observer is told about every routing decision. Unrouted models are
// reported with an empty provider and pattern.
type Observer interface {
	ObserveRoute(provider, pattern string)
}

// Option configures a Router.
type Option func(*Router)

// WithObserver sets the observer notified on every Resolve.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// Router resolves models to providers. It is immutable after construction
// and safe for concurrent use.
type Router struct {
	table     *pattern.Table[string]
	available []string
	observer  Observer
}

// NewRouter builds a router from configured routes, keeping only routes to
// the available providers. Every pattern is parsed, so a malformed route is
// reported even when its provider has no key yet. With no available
// providers the router is empty and every model fails with an error
// matching ErrNoProvidersConfigured.
func NewRouter(routes []config.RouteConfig, available []string, opts ...Option) (*Router, error) {
	avail := make(map[string]bool, len(available))
	for _, id := range available {
		avail[id] = true
	}

	entries := make([]pattern.Entry[string], 0, len(routes))
	for i, r := range routes {
		p, err := pattern.Parse(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		if !avail[r.Provider] {
			continue
		}
		entries = append(entries, pattern.Entry[string]{Pattern: p, Value: r.Provider})
	}

	table, err := pattern.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}

	sorted := append([]string(nil), available...)
	sort.Strings(sorted)

	r := &Router{table: table, available: sorted}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route returns the provider id for model.
func (r *Router) Route(model string) (string, error) {
	d, err := r.Resolve(model)
	if err != nil {
		return "", err
	}
	return d.Provider, nil
}

// Resolve returns the provider and the matching route for model.
func (r *Router) Resolve(model string) (Decision, error) {
	provider, p, ok := r.table.Lookup(model)
	if !ok {
		r.observe("", "")
		return Decision{}, &UnknownModelError{Model: model, AvailableProviders: r.available}
	}
	d := Decision{Provider: provider, Pattern: p.String()}
	r.observe(d.Provider, d.Pattern)
	return d, nil
}

func (r *Router) observe(provider, pattern string) {
	if r.observer != nil {
		r.observer.ObserveRoute(provider, pattern)
	}
}
