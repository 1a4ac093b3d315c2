package config

import "time"

// Default configuration values.
const (
	DefaultListenAddress   = "0.0.0.0:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = 10 << 20

	DefaultMinSecretLength = 32
	DefaultSystemUserID    = "system"

	DefaultProviderTimeout      = 10 * time.Minute
	DefaultProviderMaxIdleConns = 100

	DefaultBalanceUSD = "5.00"
	DefaultShards     = 64

	DefaultFallbackMaxTokens = 4096
	DefaultBytesPerToken     = 2
	DefaultMinCeilingUSD     = "0.0001"

	DefaultFlushInterval        = 30 * time.Second
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
	DefaultRetryMaxElapsed      = 15 * time.Second
	DefaultHydrateTimeout       = 30 * time.Second

	DefaultStoreBackend             = "sqlite"
	DefaultSQLitePath               = "data/tollbooth.db"
	DefaultSQLiteBusyTimeout        = 5 * time.Second
	DefaultSQLiteCheckpointInterval = 5 * time.Minute
	DefaultPostgresMaxConns         = 10
	DefaultRedisKey                 = "tollbooth:balances"

	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "tollbooth"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultServiceName      = "tollbooth"
	DefaultSampler          = "ratio"
	DefaultSampleRatio      = 0.1
	DefaultTracingTimeout   = 10 * time.Second
	DefaultAlertEnvironment = "production"
	DefaultAlertFlush       = 2 * time.Second
)

// Provider ids known out of the box.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderCerebras  = "cerebras"
	ProviderGoogle    = "google"
	ProviderXAI       = "xai"
	ProviderGateway   = "gateway"
)

// DefaultProviderBaseURLs returns the OpenAI-compatible base URL of each
// built-in provider.
func DefaultProviderBaseURLs() map[string]string {
	return map[string]string{
		ProviderOpenAI:    "https://api.openai.com/v1",
		ProviderAnthropic: "https://api.anthropic.com/v1",
		ProviderCerebras:  "https://api.cerebras.ai/v1",
		ProviderGoogle:    "https://generativelanguage.googleapis.com/v1beta/openai",
		ProviderXAI:       "https://api.x.ai/v1",
		ProviderGateway:   "https://ai-gateway.vercel.sh/v1",
	}
}

// DefaultRoutes returns the built-in model routing table. Namespaced names
// such as "anthropic/claude-sonnet-4.5" go to the gateway.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Pattern: "*/*", Provider: ProviderGateway},
		{Pattern: "gpt-*", Provider: ProviderOpenAI},
		{Pattern: "o1*", Provider: ProviderOpenAI},
		{Pattern: "o3*", Provider: ProviderOpenAI},
		{Pattern: "o4*", Provider: ProviderOpenAI},
		{Pattern: "chatgpt-*", Provider: ProviderOpenAI},
		{Pattern: "text-embedding-*", Provider: ProviderOpenAI},
		{Pattern: "claude-*", Provider: ProviderAnthropic},
		{Pattern: "llama*", Provider: ProviderCerebras},
		{Pattern: "gemini-*", Provider: ProviderGoogle},
		{Pattern: "grok-*", Provider: ProviderXAI},
	}
}

// DefaultPricingRules returns the built-in pricing table in USD per 1000
// tokens. More specific substrings come first. There is no catch-all.
func DefaultPricingRules() []PricingRuleConfig {
	return []PricingRuleConfig{
		{Pattern: "*llama*", InputPer1K: 0.0001, OutputPer1K: 0.0001},
		{Pattern: "*claude-sonnet-4*", InputPer1K: 0.003, OutputPer1K: 0.015},
		{Pattern: "*claude-3-5-sonnet*", InputPer1K: 0.003, OutputPer1K: 0.015},
		{Pattern: "*claude-opus-4*", InputPer1K: 0.015, OutputPer1K: 0.075},
		{Pattern: "*claude-3-opus*", InputPer1K: 0.015, OutputPer1K: 0.075},
		{Pattern: "*claude-haiku-4*", InputPer1K: 0.001, OutputPer1K: 0.005},
		{Pattern: "*claude-3-haiku*", InputPer1K: 0.001, OutputPer1K: 0.005},
		{Pattern: "*gpt-4o-mini*", InputPer1K: 0.00015, OutputPer1K: 0.0006},
		{Pattern: "*gpt-4o*", InputPer1K: 0.005, OutputPer1K: 0.015},
		{Pattern: "*gpt-4-turbo*", InputPer1K: 0.01, OutputPer1K: 0.03},
		{Pattern: "*gpt-4*", InputPer1K: 0.03, OutputPer1K: 0.06},
		{Pattern: "*gpt-3.5*", InputPer1K: 0.0005, OutputPer1K: 0.0015},
		{Pattern: "*gpt-*", InputPer1K: 0.005, OutputPer1K: 0.015},
		{Pattern: "text-embedding-*", InputPer1K: 0.0001, OutputPer1K: 0},
		{Pattern: "*gemini*", InputPer1K: 0.00025, OutputPer1K: 0.0005},
		{Pattern: "*grok*", InputPer1K: 0.005, OutputPer1K: 0.015},
	}
}

// DefaultModels returns the model catalog served when none is configured.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{ID: "gpt-4o", Provider: ProviderOpenAI, DisplayName: "GPT-4o", ContextWindow: 128000, MaxOutputTokens: 16384, SupportsTools: true, Slot: SlotCoding},
		{ID: "gpt-4o-mini", Provider: ProviderOpenAI, DisplayName: "GPT-4o mini", ContextWindow: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "text-embedding-3-small", Provider: ProviderOpenAI, DisplayName: "Embedding 3 Small", ContextWindow: 8191},
		{ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, DisplayName: "Claude Sonnet 4.5", ContextWindow: 200000, MaxOutputTokens: 64000, SupportsTools: true, Slot: SlotChat},
		{ID: "claude-haiku-4-5", Provider: ProviderAnthropic, DisplayName: "Claude Haiku 4.5", ContextWindow: 200000, MaxOutputTokens: 64000, SupportsTools: true, Slot: SlotLite},
		{ID: "llama-3.3-70b", Provider: ProviderCerebras, DisplayName: "Llama 3.3 70B", ContextWindow: 65536, MaxOutputTokens: 8192, SupportsTools: true},
		{ID: "gemini-2.5-flash", Provider: ProviderGoogle, DisplayName: "Gemini 2.5 Flash", ContextWindow: 1048576, MaxOutputTokens: 65536, SupportsTools: true, Slot: SlotReasoning},
		{ID: "grok-4", Provider: ProviderXAI, DisplayName: "Grok 4", ContextWindow: 256000, MaxOutputTokens: 32768, SupportsTools: true},
		{ID: "anthropic/claude-sonnet-4.5", Provider: ProviderGateway, DisplayName: "Claude Sonnet 4.5 (gateway)", ContextWindow: 200000, MaxOutputTokens: 64000, SupportsTools: true},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults. It must be
// called before Validate and before environment overrides.
func ApplyDefaults(cfg *Config) {
	applyProxyDefaults(&cfg.Proxy)
	applyAuthDefaults(&cfg.Auth)
	applyProviderDefaults(cfg)

	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes()
	}
	if len(cfg.Pricing) == 0 {
		cfg.Pricing = DefaultPricingRules()
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}

	if cfg.Budget.DefaultBalanceUSD == "" {
		cfg.Budget.DefaultBalanceUSD = DefaultBalanceUSD
	}
	if cfg.Budget.Shards == 0 {
		cfg.Budget.Shards = DefaultShards
	}

	if cfg.Admission.FallbackMaxTokens == 0 {
		cfg.Admission.FallbackMaxTokens = DefaultFallbackMaxTokens
	}
	if cfg.Admission.BytesPerToken == 0 {
		cfg.Admission.BytesPerToken = DefaultBytesPerToken
	}
	if cfg.Admission.MinCeilingUSD == "" {
		cfg.Admission.MinCeilingUSD = DefaultMinCeilingUSD
	}

	applyFlushDefaults(&cfg.Flush)
	applyStoreDefaults(&cfg.Store)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyProxyDefaults(p *ProxyConfig) {
	if p.ListenAddress == "" {
		p.ListenAddress = DefaultListenAddress
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.IdleTimeout == 0 {
		p.IdleTimeout = DefaultIdleTimeout
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = DefaultShutdownTimeout
	}
	if p.MaxHeaderBytes == 0 {
		p.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if p.MaxBodyBytes == 0 {
		p.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyAuthDefaults(a *AuthConfig) {
	if a.MinSecretLength == 0 {
		a.MinSecretLength = DefaultMinSecretLength
	}
	if a.SystemUserID == "" {
		a.SystemUserID = DefaultSystemUserID
	}
}

// applyProviderDefaults registers every built-in provider so that supplying
// only an API key through the environment is enough to enable it.
func applyProviderDefaults(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for id, baseURL := range DefaultProviderBaseURLs() {
		if _, ok := cfg.Providers[id]; !ok {
			cfg.Providers[id] = ProviderConfig{BaseURL: baseURL}
		}
	}
	for id, p := range cfg.Providers {
		if p.BaseURL == "" {
			p.BaseURL = DefaultProviderBaseURLs()[id]
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.MaxIdleConns == 0 {
			p.MaxIdleConns = DefaultProviderMaxIdleConns
		}
		cfg.Providers[id] = p
	}
}

func applyFlushDefaults(f *FlushConfig) {
	if f.Interval == 0 {
		f.Interval = DefaultFlushInterval
	}
	if f.RetryInitialInterval == 0 {
		f.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if f.RetryMaxInterval == 0 {
		f.RetryMaxInterval = DefaultRetryMaxInterval
	}
	if f.RetryMaxElapsed == 0 {
		f.RetryMaxElapsed = DefaultRetryMaxElapsed
	}
	if f.HydrateTimeout == 0 {
		f.HydrateTimeout = DefaultHydrateTimeout
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Backend == "" {
		s.Backend = DefaultStoreBackend
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = DefaultSQLitePath
	}
	if s.SQLite.BusyTimeout == 0 {
		s.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if s.SQLite.CheckpointInterval == 0 {
		s.SQLite.CheckpointInterval = DefaultSQLiteCheckpointInterval
	}
	if s.Postgres.MaxConns == 0 {
		s.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if s.Redis.Key == "" {
		s.Redis.Key = DefaultRedisKey
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Logging.RedactSecrets == nil {
		t.Logging.RedactSecrets = boolPtr(true)
	}

	if t.Metrics.Enabled == nil {
		t.Metrics.Enabled = boolPtr(true)
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}

	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultServiceName
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultSampleRatio
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}

	if t.Alerts.Environment == "" {
		t.Alerts.Environment = DefaultAlertEnvironment
	}
	if t.Alerts.FlushTimeout == 0 {
		t.Alerts.FlushTimeout = DefaultAlertFlush
	}
}

func boolPtr(b bool) *bool { return &b }
