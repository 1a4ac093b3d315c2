// Package config provides configuration management for Tollbooth.
//
// Configuration is read once at startup from an optional YAML file and the
// process environment. There is no hot reload: changing the secret, a price
// or a route requires a restart.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("tollbooth.yaml")
//
// A missing file is not an error; every setting has a default except the
// internal secret.
//
// # Environment Variable Overrides
//
// Overrides are read with envconfig using the TOLLBOOTH prefix. Each name
// also resolves without the prefix, which keeps the conventional provider
// key names working:
//
//   - TOLLBOOTH_INTERNAL_SECRET (required, at least 32 characters)
//   - TOLLBOOTH_PORT or TOLLBOOTH_LISTEN_ADDRESS
//   - TOLLBOOTH_DEFAULT_BUDGET, a USD amount such as "5.00"
//   - TOLLBOOTH_FLUSH_INTERVAL, a duration; REPORT_INTERVAL in seconds is
//     accepted as well
//   - TOLLBOOTH_STORE_BACKEND, TOLLBOOTH_SQLITE_PATH, TOLLBOOTH_POSTGRES_DSN,
//     TOLLBOOTH_REDIS_ADDR
//   - TOLLBOOTH_LOG_LEVEL, TOLLBOOTH_SENTRY_DSN
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, CEREBRAS_API_KEY, GOOGLE_API_KEY,
//     XAI_API_KEY, AI_GATEWAY_API_KEY and AI_GATEWAY_URL
//
// A .env file in the working directory is loaded first when present.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every problem into a single ValidationError. Besides
// required fields and ranges it rejects route and pricing tables containing
// duplicate literals or wildcard patterns that an earlier pattern makes
// unreachable.
package config
