package config

import (
	"strings"
	"time"
)

// CacheConfig contains snapshot cache configuration (Redis-based). When
// enabled, the last successful snapshot per host is kept so a host outage
// degrades to stale data instead of an empty view.
type CacheConfig struct {
	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	// SnapshotTTL is the retention of each cached host snapshot.
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

// Sanitize disables the cache when it cannot possibly work.
func (c *CacheConfig) Sanitize() {
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	if c.RedisAddr == "" {
		c.Enabled = false
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 24 * time.Hour
	}
}
