package config

import (
	"strings"
	"time"
)

// RealtimeConfig contains WebSocket push channel configuration.
type RealtimeConfig struct {
	// URL is the ws:// or wss:// endpoint. Empty runs the engine in
	// polling-only mode.
	URL string `env:"URL" envDefault:""`

	// InitialBackoff is the first reconnect delay after a drop.
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"1s"`

	// MaxBackoff caps the reconnect delay ladder.
	MaxBackoff time.Duration `env:"MAX_BACKOFF" envDefault:"30s"`
}

// Sanitize normalises the endpoint and keeps the backoff ladder ordered.
func (c *RealtimeConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
}

// IsEnabled returns true when a push endpoint is configured.
func (c *RealtimeConfig) IsEnabled() bool {
	return c.URL != ""
}
