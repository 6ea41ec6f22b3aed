package config

import (
	"strings"
	"time"
)

// APIConfig contains backend REST API configuration.
type APIConfig struct {
	// BaseURL is the root of the clusterview backend, e.g.
	// https://clusterview.example.com.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Key is sent as X-API-Key on every request. Empty disables the header.
	Key string `env:"KEY" envDefault:""`

	// RequestTimeout bounds each REST call.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Key = strings.TrimSpace(c.Key)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
}
