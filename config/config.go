package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: backend REST API configuration
//   - sync.go: host sync and reconciliation configuration
//   - realtime.go: WebSocket push channel configuration
//   - cache.go: snapshot cache configuration
type AppConfig struct {
	// IsDev controls development mode behavior (text log format, debug level).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Backend REST API configuration
	API APIConfig `envPrefix:"API_"`

	// Host sync configuration
	Sync SyncConfig

	// WebSocket push channel configuration
	Realtime RealtimeConfig `envPrefix:"WS_"`

	// Snapshot cache configuration
	Cache CacheConfig `envPrefix:"CACHE_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Sync.Sanitize()
	c.Realtime.Sanitize()
	c.Cache.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
