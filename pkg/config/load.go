package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOLLBOOTH"

// envOverrides lists the settings that can be supplied through the
// environment. Explicit names also resolve without the prefix, so
// OPENAI_API_KEY works as well as TOLLBOOTH_OPENAI_API_KEY.
type envOverrides struct {
	InternalSecret string `envconfig:"INTERNAL_SECRET"`
	ListenAddress  string `envconfig:"LISTEN_ADDRESS"`
	Port           int    `envconfig:"PORT"`

	DefaultBudget  string        `envconfig:"DEFAULT_BUDGET"`
	FlushInterval  time.Duration `envconfig:"FLUSH_INTERVAL"`
	ReportInterval int           `envconfig:"REPORT_INTERVAL"`

	StoreBackend string `envconfig:"STORE_BACKEND"`
	SQLitePath   string `envconfig:"SQLITE_PATH"`
	PostgresDSN  string `envconfig:"POSTGRES_DSN"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	SentryDSN string `envconfig:"SENTRY_DSN"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	CerebrasAPIKey  string `envconfig:"CEREBRAS_API_KEY"`
	GoogleAPIKey    string `envconfig:"GOOGLE_API_KEY"`
	XAIAPIKey       string `envconfig:"XAI_API_KEY"`
	GatewayAPIKey   string `envconfig:"AI_GATEWAY_API_KEY"`
	GatewayURL      string `envconfig:"AI_GATEWAY_URL"`
}

// LoadConfig loads configuration from a YAML file at the specified path.
// An empty path or a missing file yields the defaults. Defaults are applied
// and the result is validated; environment variables are not consulted.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
			}
		}
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load .env into the process environment if present
// 2. Load YAML from file
// 3. Apply default values
// 4. Apply environment variable overrides
// 5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a dotenv file without overriding ones that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Only variables that are set and non-empty take effect.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	setString(&cfg.Auth.InternalSecret, env.InternalSecret)
	setString(&cfg.Proxy.ListenAddress, env.ListenAddress)
	if env.Port > 0 {
		cfg.Proxy.ListenAddress = net.JoinHostPort("0.0.0.0", strconv.Itoa(env.Port))
	}

	setString(&cfg.Budget.DefaultBalanceUSD, env.DefaultBudget)
	if env.ReportInterval > 0 {
		cfg.Flush.Interval = time.Duration(env.ReportInterval) * time.Second
	}
	if env.FlushInterval > 0 {
		cfg.Flush.Interval = env.FlushInterval
	}

	setString(&cfg.Store.Backend, env.StoreBackend)
	setString(&cfg.Store.SQLite.Path, env.SQLitePath)
	setString(&cfg.Store.Postgres.DSN, env.PostgresDSN)
	setString(&cfg.Store.Redis.Addr, env.RedisAddr)

	setString(&cfg.Telemetry.Logging.Level, env.LogLevel)
	setString(&cfg.Telemetry.Alerts.SentryDSN, env.SentryDSN)

	setProviderKey(cfg, ProviderOpenAI, env.OpenAIAPIKey)
	setProviderKey(cfg, ProviderAnthropic, env.AnthropicAPIKey)
	setProviderKey(cfg, ProviderCerebras, env.CerebrasAPIKey)
	setProviderKey(cfg, ProviderGoogle, env.GoogleAPIKey)
	setProviderKey(cfg, ProviderXAI, env.XAIAPIKey)
	setProviderKey(cfg, ProviderGateway, env.GatewayAPIKey)
	if env.GatewayURL != "" {
		p := cfg.Providers[ProviderGateway]
		p.BaseURL = env.GatewayURL
		cfg.Providers[ProviderGateway] = p
	}

	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setProviderKey(cfg *Config, id, key string) {
	if key == "" {
		return
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	p := cfg.Providers[id]
	p.APIKey = key
	if p.BaseURL == "" {
		p.BaseURL = DefaultProviderBaseURLs()[id]
	}
	cfg.Providers[id] = p
}
