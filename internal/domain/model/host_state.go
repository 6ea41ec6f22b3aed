package model

import "time"

// HostSyncStatus is the lifecycle phase of a host's snapshot fetch.
type HostSyncStatus string

const (
	// HostSyncIdle means no fetch has been attempted yet.
	HostSyncIdle HostSyncStatus = "idle"
	// HostSyncLoading means a snapshot fetch is in flight.
	HostSyncLoading HostSyncStatus = "loading"
	// HostSyncSuccess means the last fetch completed.
	HostSyncSuccess HostSyncStatus = "success"
	// HostSyncError means the last fetch failed; Err and IsTimeout carry detail.
	HostSyncError HostSyncStatus = "error"
)

// DataSource reports where the current host snapshot came from.
type DataSource string

const (
	// DataSourceLive means the snapshot came from the scheduler itself.
	DataSourceLive DataSource = "live"
	// DataSourceCache means the snapshot was served from the last-known cache
	// while the host is unreachable.
	DataSourceCache DataSource = "cache"
)

// HostSyncState tracks per-host fetch health. One instance exists per
// configured host for the lifetime of the manager. Failure is surfaced here,
// never as an error that crosses into the job store.
type HostSyncState struct {
	Hostname   string         `json:"hostname"`
	Status     HostSyncStatus `json:"status"`
	LastSyncAt *time.Time     `json:"last_sync_at,omitempty"`
	Err        string         `json:"error,omitempty"`
	IsTimeout  bool           `json:"is_timeout,omitempty"`
	DataSource DataSource     `json:"data_source,omitempty"`
}

// ConnectionSource reports which channel is currently feeding updates.
type ConnectionSource string

const (
	// ConnectionWebSocket means the push channel is live.
	ConnectionWebSocket ConnectionSource = "websocket"
	// ConnectionPolling means the fallback poll loop is feeding updates.
	ConnectionPolling ConnectionSource = "polling"
)

// ConnectionStatus summarises the realtime channel for consumers.
type ConnectionStatus struct {
	Connected     bool             `json:"connected"`
	Source        ConnectionSource `json:"source"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
}
