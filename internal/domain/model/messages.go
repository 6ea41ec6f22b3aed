package model

import "encoding/json"

// WSMessageType discriminates inbound realtime messages.
type WSMessageType string

const (
	// WSTypeInitial carries a full per-host snapshot for every host present.
	WSTypeInitial WSMessageType = "initial"
	// WSTypeStateChange carries a single job delta.
	WSTypeStateChange WSMessageType = "state_change"
	// WSTypeBatchUpdate carries many job deltas applied as one batch.
	WSTypeBatchUpdate WSMessageType = "batch_update"
)

// WSMessage is the envelope of every inbound realtime message. Payload fields
// are decoded lazily so an unknown type can be skipped without parsing its
// body.
type WSMessage struct {
	Type WSMessageType `json:"type"`

	// WSTypeInitial: hostname to full job list.
	Hosts map[string][]JobRecord `json:"hosts,omitempty"`

	// WSTypeStateChange: one delta.
	JobID    string          `json:"job_id,omitempty"`
	Hostname string          `json:"hostname,omitempty"`
	Job      json.RawMessage `json:"job,omitempty"`

	// WSTypeBatchUpdate: many deltas.
	Updates []WSJobDelta `json:"updates,omitempty"`
}

// WSJobDelta is one entry of a batch_update message.
type WSJobDelta struct {
	JobID    string    `json:"job_id"`
	Hostname string    `json:"hostname"`
	Job      JobRecord `json:"job"`
}

// StatusResponse is the body of GET /api/status for one host: the full job
// snapshot plus server-computed array groupings.
type StatusResponse struct {
	Hostname    string          `json:"hostname"`
	Jobs        []JobRecord     `json:"jobs"`
	ArrayGroups []ArrayJobGroup `json:"array_groups,omitempty"`
}

// HostsResponse is the body of GET /api/hosts.
type HostsResponse struct {
	Hosts []string `json:"hosts"`
}

// JobOutputResponse is the body of GET /api/jobs/{id}/output.
type JobOutputResponse struct {
	JobID  string `json:"job_id"`
	Output string `json:"output"`
}

// JobScriptResponse is the body of GET /api/jobs/{id}/script.
type JobScriptResponse struct {
	JobID  string `json:"job_id"`
	Script string `json:"script"`
}

// CancelResponse is the body of POST /api/jobs/{id}/cancel.
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message,omitempty"`
}

// CreateWatcherRequest is the body of POST /api/watchers.
type CreateWatcherRequest struct {
	JobID    string `json:"job_id"`
	Hostname string `json:"hostname"`
	Pattern  string `json:"pattern"`
	Action   string `json:"action,omitempty"`
}

// StatusQuery narrows a per-host snapshot request.
type StatusQuery struct {
	User          string
	Since         string
	Limit         int
	State         JobState
	ActiveOnly    bool
	CompletedOnly bool
}
