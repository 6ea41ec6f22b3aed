package config

import (
	"strings"
	"time"
)

// SyncConfig contains host sync and reconciliation configuration.
type SyncConfig struct {
	// Hosts is the comma-separated list of SLURM hosts to track. Empty means
	// the host list is fetched from the backend at startup.
	Hosts []string `env:"SYNC_HOSTS" envDefault:""`

	// PollInterval is the REST polling cadence while the push channel is
	// down.
	PollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"60s"`

	// DebounceWindow collapses bursts of normal-priority updates into one
	// store notification.
	DebounceWindow time.Duration `env:"SYNC_DEBOUNCE_WINDOW" envDefault:"200ms"`

	// InitialSnapshotTimeout bounds how long startup waits for the push
	// channel's initial snapshot before sweeping over REST.
	InitialSnapshotTimeout time.Duration `env:"SYNC_INITIAL_SNAPSHOT_TIMEOUT" envDefault:"5s"`
}

// Sanitize normalises the host list and clamps intervals to safe defaults.
func (c *SyncConfig) Sanitize() {
	hosts := make([]string, 0, len(c.Hosts))
	seen := make(map[string]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	c.Hosts = hosts

	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 200 * time.Millisecond
	}
	if c.InitialSnapshotTimeout <= 0 {
		c.InitialSnapshotTimeout = 5 * time.Second
	}
}
