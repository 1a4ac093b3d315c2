package config

import "time"

// Config is the root configuration structure for Tollbooth.
// It is read once at boot; changing any value requires a restart.
type Config struct {
	// Proxy contains HTTP server configuration including listen address
	// and timeouts.
	Proxy ProxyConfig `yaml:"proxy"`

	// Auth contains the shared-secret authentication settings for callers.
	Auth AuthConfig `yaml:"auth"`

	// Providers contains upstream LLM provider endpoints keyed by provider id
	// (e.g., "openai", "anthropic"). A provider without an API key is treated
	// as unavailable and excluded from routing.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Routes maps model-name patterns to provider ids. Exact literals are
	// matched first, then wildcard patterns in list order.
	Routes []RouteConfig `yaml:"routes"`

	// Pricing maps model-name patterns to per-1000-token prices. Same
	// matching discipline as Routes. Unpriced models are rejected.
	Pricing []PricingRuleConfig `yaml:"pricing"`

	// Models is the catalog served by GET /v1/models.
	Models []ModelConfig `yaml:"models"`

	// Budget contains ledger settings.
	Budget BudgetConfig `yaml:"budget"`

	// Admission contains reservation ceiling estimation settings.
	Admission AdmissionConfig `yaml:"admission"`

	// Flush contains durable flush scheduling and retry settings.
	Flush FlushConfig `yaml:"flush"`

	// Store selects and configures the durable balance store.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains logging, metrics, tracing and alerting configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "0.0.0.0:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Streamed completions can be
	// long, so the default is generous.
	// Default: 10m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown, including the final flush.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits inbound request bodies.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// AuthConfig contains caller authentication settings.
type AuthConfig struct {
	// InternalSecret is the shared secret expected in X-Internal-Secret.
	// Usually supplied through TOLLBOOTH_INTERNAL_SECRET.
	InternalSecret string `yaml:"internal_secret"`

	// MinSecretLength is the minimum accepted secret length.
	// Default: 32
	MinSecretLength int `yaml:"min_secret_length"`

	// SystemUserID is the user charged when X-User-Id is absent.
	// Default: "system"
	SystemUserID string `yaml:"system_user_id"`
}

// ProviderConfig contains configuration for an upstream provider speaking the
// OpenAI-compatible chat completions protocol.
type ProviderConfig struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates to the provider. Empty means unavailable.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single upstream request, including streaming.
	// Default: 10m
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns caps pooled idle connections to this provider.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// Headers are extra headers sent on every upstream request.
	Headers map[string]string `yaml:"headers"`
}

// RouteConfig maps a model-name pattern to a provider id.
type RouteConfig struct {
	Pattern  string `yaml:"pattern"`
	Provider string `yaml:"provider"`
}

// PricingRuleConfig prices a model-name pattern in USD per 1000 tokens.
type PricingRuleConfig struct {
	Pattern     string  `yaml:"pattern"`
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// ModelConfig describes one entry of the model catalog.
type ModelConfig struct {
	ID              string `yaml:"id"`
	Provider        string `yaml:"provider"`
	DisplayName     string `yaml:"display_name"`
	ContextWindow   int    `yaml:"context_window"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	SupportsTools   bool   `yaml:"supports_tools"`

	// Slot marks the model as the recommended default for one purpose:
	// chat, lite, reasoning or coding. Each slot names at most one model.
	Slot string `yaml:"slot"`
}

// Recommendation slots a catalog model can fill.
const (
	SlotChat      = "chat"
	SlotLite      = "lite"
	SlotReasoning = "reasoning"
	SlotCoding    = "coding"
)

// ModelSlots lists the recommendation slots in display order.
func ModelSlots() []string {
	return []string{SlotChat, SlotLite, SlotReasoning, SlotCoding}
}

// BudgetConfig contains ledger settings.
type BudgetConfig struct {
	// DefaultBalanceUSD is the starting balance of a user unknown to the
	// durable store, as a decimal USD string.
	// Default: "5.00"
	DefaultBalanceUSD string `yaml:"default_balance_usd"`

	// Shards is the number of independently locked ledger shards.
	// Default: 64
	Shards int `yaml:"shards"`
}

// AdmissionConfig controls reservation ceiling estimation.
type AdmissionConfig struct {
	// FallbackMaxTokens is used as the output bound when a request does not
	// set max_tokens or max_completion_tokens.
	// Default: 4096
	FallbackMaxTokens int64 `yaml:"fallback_max_tokens"`

	// BytesPerToken converts request payload size into an input token
	// estimate. Lower is more conservative.
	// Default: 2
	BytesPerToken int64 `yaml:"bytes_per_token"`

	// MinCeilingUSD is the smallest ceiling ever reserved.
	// Default: "0.0001"
	MinCeilingUSD string `yaml:"min_ceiling_usd"`
}

// FlushConfig controls the periodic durable flush.
type FlushConfig struct {
	// Interval between flush ticks.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// RetryInitialInterval is the first backoff delay within a tick.
	// Default: 500ms
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`

	// RetryMaxInterval caps the backoff delay.
	// Default: 5s
	RetryMaxInterval time.Duration `yaml:"retry_max_interval"`

	// RetryMaxElapsed bounds retries within one tick; remaining deltas are
	// merged back and retried on the next tick.
	// Default: 15s
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`

	// HydrateTimeout bounds loading balances from the store at boot.
	// Default: 30s
	HydrateTimeout time.Duration `yaml:"hydrate_timeout"`
}

// StoreConfig selects the durable store backend.
type StoreConfig struct {
	// Backend is one of "sqlite", "postgres", "redis" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL backend settings.
	Postgres PostgresConfig `yaml:"postgres"`

	// Redis contains Redis backend settings.
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig contains SQLite store settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/tollbooth.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// PostgresConfig contains PostgreSQL store settings.
type PostgresConfig struct {
	// DSN is a lib/pq connection string.
	DSN string `yaml:"dsn"`

	// MaxConns caps open connections.
	// Default: 10
	MaxConns int `yaml:"max_conns"`
}

// RedisConfig contains Redis store settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Key is the hash holding balances.
	// Default: "tollbooth:balances"
	Key string `yaml:"key"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Alerts  AlertsConfig  `yaml:"alerts"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks secret-bearing attributes.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "tollbooth"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "tollbooth"
	ServiceName string `yaml:"service_name"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// AlertsConfig contains invariant-violation alerting settings.
type AlertsConfig struct {
	// SentryDSN enables Sentry reporting when set.
	SentryDSN string `yaml:"sentry_dsn"`

	// Environment is reported with each event.
	// Default: "production"
	Environment string `yaml:"environment"`

	// FlushTimeout bounds delivery of pending events at shutdown.
	// Default: 2s
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// AvailableProviders returns the ids of providers with an API key.
func (c *Config) AvailableProviders() []string {
	var ids []string
	for id, p := range c.Providers {
		if p.APIKey != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasProvider reports whether at least one provider is available.
func (c *Config) HasProvider() bool {
	return len(c.AvailableProviders()) > 0
}
