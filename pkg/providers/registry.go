package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tollbooth-hq/tollbooth/pkg/config"
)

// Registry holds the providers that have credentials. It is built once at
// boot and never changes, so it needs no locking.
type Registry struct {
	providers map[string]Provider
	names     []string
}

// NewRegistry creates an HTTPProvider for every configured provider with an
// API key. Providers without a key are skipped and logged.
func NewRegistry(cfgs map[string]config.ProviderConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{providers: make(map[string]Provider, len(cfgs))}
	for name, cfg := range cfgs {
		if cfg.APIKey == "" {
			logger.Debug("provider has no api key, skipping", "provider", name)
			continue
		}
		r.providers[name] = NewHTTPProvider(name, cfg, logger)
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	logger.Info("providers configured", "providers", r.names, "count", len(r.names))
	return r
}

// NewRegistryFrom wraps already constructed providers.
func NewRegistryFrom(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
		r.names = append(r.names, p.Name())
	}
	sort.Strings(r.names)
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, name)
	}
	return p, nil
}

// Names returns the configured provider ids, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of configured providers.
func (r *Registry) Len() int {
	return len(r.names)
}

// Health returns the passive health of every provider.
func (r *Registry) Health() map[string]ProviderHealth {
	out := make(map[string]ProviderHealth, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.GetHealth()
	}
	return out
}

// Close closes every provider.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.names {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
