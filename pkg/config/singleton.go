package config

import (
	"sync"
	"sync/atomic"
)

var (
	current  atomic.Pointer[Config]
	initOnce sync.Once
	initErr  error
)

// Initialize loads the configuration at path with environment overrides and
// makes it the process configuration. Only the first call loads; later
// calls return the first call's error. There is no reload: secrets, keys,
// balances and the flush interval are read once at boot.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		current.Store(cfg)
	})
	return initErr
}

// GetConfig returns the process configuration, or nil before a successful
// Initialize. Runtime components should receive their section explicitly
// instead of calling this.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process configuration. Tests only.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// MustGetConfig is GetConfig that panics when nothing is loaded.
func MustGetConfig() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("config: Initialize has not succeeded")
	}
	return cfg
}
