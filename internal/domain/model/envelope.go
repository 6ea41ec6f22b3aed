package model

import "time"

// UpdateSource identifies which channel produced an update.
type UpdateSource string

const (
	// SourceAPI marks a targeted single-job REST fetch.
	SourceAPI UpdateSource = "api"
	// SourceWebSocket marks a push delta from the realtime channel.
	SourceWebSocket UpdateSource = "websocket"
	// SourcePoll marks a record taken from a periodic snapshot poll.
	SourcePoll UpdateSource = "poll"
)

// UpdatePriority orders envelopes competing for the same job identity.
type UpdatePriority int

const (
	// PriorityNormal updates are debounced and applied in batches.
	PriorityNormal UpdatePriority = iota
	// PriorityHigh updates flush immediately and always win over
	// normal-priority updates regardless of timestamp.
	PriorityHigh
)

// UpdateEnvelope wraps one job observation on its way to the store. Envelopes
// are transient: consumed by the reconciler, never retained.
type UpdateEnvelope struct {
	Key       JobKey
	Record    JobRecord
	Source    UpdateSource
	Timestamp time.Time
	Priority  UpdatePriority
}

// NewEnvelope builds an envelope for a record, defaulting the ordering
// timestamp to the record's UpdatedAt.
func NewEnvelope(rec JobRecord, source UpdateSource, priority UpdatePriority) UpdateEnvelope {
	return UpdateEnvelope{
		Key:       rec.Key(),
		Record:    rec,
		Source:    source,
		Timestamp: rec.UpdatedAt,
		Priority:  priority,
	}
}
