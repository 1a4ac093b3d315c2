package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/pattern"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRoutes(cfg.Routes, cfg.Providers)...)
	errs = append(errs, validatePricing(cfg.Pricing)...)
	errs = append(errs, validateModels(cfg.Models)...)
	errs = append(errs, validateBudget(&cfg.Budget, &cfg.Admission)...)
	errs = append(errs, validateFlush(&cfg.Flush)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "max header bytes must be between 0 and 10MB",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_body_bytes", Message: "max body bytes must be non-negative"})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	switch {
	case cfg.InternalSecret == "":
		errs = append(errs, FieldError{
			Field:   "auth.internal_secret",
			Message: "internal secret is required (set TOLLBOOTH_INTERNAL_SECRET)",
		})
	case len(cfg.InternalSecret) < cfg.MinSecretLength:
		errs = append(errs, FieldError{
			Field:   "auth.internal_secret",
			Message: fmt.Sprintf("internal secret must be at least %d characters", cfg.MinSecretLength),
		})
	}
	if cfg.SystemUserID == "" {
		errs = append(errs, FieldError{Field: "auth.system_user_id", Message: "system user id is required"})
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for name, provider := range providers {
		prefix := fmt.Sprintf("providers.%s", name)

		if provider.BaseURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "base URL is required"})
		} else if u, err := url.Parse(provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid URL %q", provider.BaseURL),
			})
		}
		if provider.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be positive"})
		}
	}

	return errs
}

func validateRoutes(routes []RouteConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	entries := make([]pattern.Entry[string], 0, len(routes))
	for i, r := range routes {
		field := fmt.Sprintf("routes[%d]", i)
		p, err := pattern.Parse(r.Pattern)
		if err != nil {
			errs = append(errs, FieldError{Field: field + ".pattern", Message: err.Error()})
			continue
		}
		if _, ok := providers[r.Provider]; !ok {
			errs = append(errs, FieldError{
				Field:   field + ".provider",
				Message: fmt.Sprintf("unknown provider %q", r.Provider),
			})
		}
		entries = append(entries, pattern.Entry[string]{Pattern: p, Value: r.Provider})
	}

	errs = append(errs, validateTable("routes", entries)...)
	return errs
}

func validateModels(models []ModelConfig) []FieldError {
	var errs []FieldError

	taken := make(map[string]string)
	for i, m := range models {
		field := fmt.Sprintf("models[%d]", i)
		if m.ID == "" {
			errs = append(errs, FieldError{Field: field + ".id", Message: "model id is required"})
		}
		if m.Slot == "" {
			continue
		}
		if !slices.Contains(ModelSlots(), m.Slot) {
			errs = append(errs, FieldError{
				Field:   field + ".slot",
				Message: fmt.Sprintf("unknown slot %q (want one of %s)", m.Slot, strings.Join(ModelSlots(), ", ")),
			})
			continue
		}
		if prev, ok := taken[m.Slot]; ok {
			errs = append(errs, FieldError{
				Field:   field + ".slot",
				Message: fmt.Sprintf("slot %q already taken by %s", m.Slot, prev),
			})
			continue
		}
		taken[m.Slot] = m.ID
	}

	return errs
}

func validatePricing(rules []PricingRuleConfig) []FieldError {
	var errs []FieldError

	if len(rules) == 0 {
		errs = append(errs, FieldError{Field: "pricing", Message: "at least one pricing rule is required"})
		return errs
	}

	entries := make([]pattern.Entry[struct{}], 0, len(rules))
	for i, r := range rules {
		field := fmt.Sprintf("pricing[%d]", i)
		p, err := pattern.Parse(r.Pattern)
		if err != nil {
			errs = append(errs, FieldError{Field: field + ".pattern", Message: err.Error()})
			continue
		}
		if r.InputPer1K < 0 || r.OutputPer1K < 0 {
			errs = append(errs, FieldError{Field: field, Message: "prices cannot be negative"})
		}
		entries = append(entries, pattern.Entry[struct{}]{Pattern: p})
	}

	errs = append(errs, validateTable("pricing", entries)...)
	return errs
}

// validateTable rejects duplicate literals and unreachable wildcard entries.
func validateTable[T any](field string, entries []pattern.Entry[T]) []FieldError {
	t, err := pattern.NewTable(entries)
	if err != nil {
		return []FieldError{{Field: field, Message: err.Error()}}
	}
	var errs []FieldError
	for _, s := range t.Shadowed() {
		errs = append(errs, FieldError{
			Field:   field,
			Message: fmt.Sprintf("pattern %q is unreachable: shadowed by earlier pattern %q", s.Pattern, s.ShadowedBy),
		})
	}
	return errs
}

func validateBudget(b *BudgetConfig, a *AdmissionConfig) []FieldError {
	var errs []FieldError

	if amt, err := money.ParseUSD(b.DefaultBalanceUSD); err != nil {
		errs = append(errs, FieldError{
			Field:   "budget.default_balance_usd",
			Message: fmt.Sprintf("invalid amount %q: %v", b.DefaultBalanceUSD, err),
		})
	} else if amt < 0 {
		errs = append(errs, FieldError{Field: "budget.default_balance_usd", Message: "default balance cannot be negative"})
	}
	if b.Shards < 1 {
		errs = append(errs, FieldError{Field: "budget.shards", Message: "shards must be at least 1"})
	}

	if a.FallbackMaxTokens < 1 {
		errs = append(errs, FieldError{Field: "admission.fallback_max_tokens", Message: "must be at least 1"})
	}
	if a.BytesPerToken < 1 {
		errs = append(errs, FieldError{Field: "admission.bytes_per_token", Message: "must be at least 1"})
	}
	if amt, err := money.ParseUSD(a.MinCeilingUSD); err != nil || amt < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.min_ceiling_usd",
			Message: fmt.Sprintf("invalid amount %q", a.MinCeilingUSD),
		})
	}

	return errs
}

func validateFlush(f *FlushConfig) []FieldError {
	var errs []FieldError

	if f.Interval <= 0 {
		errs = append(errs, FieldError{Field: "flush.interval", Message: "interval must be positive"})
	}
	if f.RetryInitialInterval <= 0 {
		errs = append(errs, FieldError{Field: "flush.retry_initial_interval", Message: "must be positive"})
	}
	if f.RetryMaxInterval < f.RetryInitialInterval {
		errs = append(errs, FieldError{
			Field:   "flush.retry_max_interval",
			Message: "must not be smaller than retry_initial_interval",
		})
	}
	if f.RetryMaxElapsed < 0 {
		errs = append(errs, FieldError{Field: "flush.retry_max_elapsed", Message: "must be non-negative"})
	}
	if f.HydrateTimeout <= 0 {
		errs = append(errs, FieldError{Field: "flush.hydrate_timeout", Message: "must be positive"})
	}

	return errs
}

func validateStore(s *StoreConfig) []FieldError {
	var errs []FieldError

	switch s.Backend {
	case "memory":
	case "sqlite":
		if s.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "store.postgres.dsn",
				Message: "PostgreSQL DSN is required when backend is 'postgres'",
			})
		}
		if s.Postgres.MaxConns < 1 {
			errs = append(errs, FieldError{Field: "store.postgres.max_conns", Message: "must be at least 1"})
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "store.redis.addr",
				Message: "Redis address is required when backend is 'redis'",
			})
		}
		if s.Redis.Key == "" {
			errs = append(errs, FieldError{Field: "store.redis.key", Message: "Redis key is required"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite', 'postgres', 'redis', or 'memory'", s.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
