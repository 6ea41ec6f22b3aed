// Package store holds the canonical in-memory job map and its observable
// read views. All mutation funnels through the reconciler's flush path, so a
// single mutex is the only serialization the store needs.
package store

import (
	"log/slog"
	"sync"

	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/observability/statsd"
	"github.com/clusterview/clusterview/internal/pubsub"
)

// entry pairs a record with the priority of the write that produced it. A
// lower-priority envelope never replaces a higher-priority record; the next
// full host snapshot resets the stored priority.
type entry struct {
	record   model.JobRecord
	priority model.UpdatePriority
}

// StoreOptions groups dependencies for the Store.
type StoreOptions struct {
	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: metrics sink
}

// Store is the canonical in-memory map of job records keyed by
// (hostname, job_id). Reads are observable; writes emit at most one
// notification per call regardless of how many records changed.
type Store struct {
	mu      sync.Mutex
	entries map[model.JobKey]entry
	jobs    *pubsub.Subject[[]model.JobRecord]
	keyed   map[model.JobKey]*pubsub.Subject[*model.JobRecord]

	// revision increments once per change notification.
	revision uint64

	logger  *slog.Logger
	metrics statsd.Sink
}

// New constructs an empty store.
func New(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[model.JobKey]entry),
		jobs:    pubsub.NewSubject[[]model.JobRecord](),
		keyed:   make(map[model.JobKey]*pubsub.Subject[*model.JobRecord]),
		logger:  logger.With("component", "job_store"),
		metrics: opts.Metrics,
	}
}

// ApplyUpdate merges one envelope and, if it was accepted, emits a change
// notification. Last-write-wins by timestamp, except that a high-priority
// record is never replaced by a lower-priority envelope.
func (s *Store) ApplyUpdate(env model.UpdateEnvelope) {
	s.mu.Lock()
	changed := s.apply(env)
	if changed {
		s.publishLocked([]model.JobKey{env.Key})
	}
	s.mu.Unlock()
}

// ApplyBatch merges many envelopes and emits exactly one change notification
// if any of them was accepted. Envelopes are applied in slice order.
func (s *Store) ApplyBatch(envs []model.UpdateEnvelope) {
	if len(envs) == 0 {
		return
	}
	s.mu.Lock()
	var touched []model.JobKey
	for _, env := range envs {
		if s.apply(env) {
			touched = append(touched, env.Key)
		}
	}
	if len(touched) > 0 {
		s.publishLocked(touched)
	}
	s.mu.Unlock()
}

// apply merges one envelope under the store lock and reports whether the
// record changed.
func (s *Store) apply(env model.UpdateEnvelope) bool {
	cur, exists := s.entries[env.Key]
	if exists {
		if env.Priority < cur.priority {
			s.count("store.update.rejected", map[string]string{"reason": "priority"})
			return false
		}
		if env.Priority == cur.priority && env.Timestamp.Before(cur.record.UpdatedAt) {
			s.count("store.update.rejected", map[string]string{"reason": "stale"})
			return false
		}
	}
	s.entries[env.Key] = entry{record: env.Record, priority: env.Priority}
	s.count("store.update.applied", map[string]string{"source": string(env.Source)})
	return true
}

// ReplaceHostSnapshot replaces every record for hostname with the given set.
// Records previously known for the host but absent from the set are evicted:
// the scheduler is the source of truth for "still exists". Last-write-wins
// still holds per record: a snapshot entry older than the record already in
// the store is ignored, so a stale poll never rolls back a newer push delta.
// A snapshot is authoritative for its host, so it resets any stored
// high-priority marks either way. Emits at most one change notification.
func (s *Store) ReplaceHostSnapshot(hostname string, records []model.JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[model.JobKey]model.JobRecord, len(records))
	for _, rec := range records {
		incoming[rec.Key()] = rec
	}

	var touched []model.JobKey
	var evicted []model.JobKey
	for key := range s.entries {
		if key.Hostname != hostname {
			continue
		}
		if _, ok := incoming[key]; !ok {
			delete(s.entries, key)
			evicted = append(evicted, key)
		}
	}
	for key, rec := range incoming {
		if cur, ok := s.entries[key]; ok && rec.UpdatedAt.Before(cur.record.UpdatedAt) {
			s.count("store.update.rejected", map[string]string{"reason": "stale"})
			s.entries[key] = entry{record: cur.record, priority: model.PriorityNormal}
			continue
		}
		s.entries[key] = entry{record: rec, priority: model.PriorityNormal}
		touched = append(touched, key)
	}

	if len(evicted) > 0 {
		s.logger.Debug("evicted jobs absent from snapshot",
			"hostname", hostname, "count", len(evicted))
	}
	if len(touched) > 0 || len(evicted) > 0 {
		s.publishLocked(append(touched, evicted...))
	}
}

// Snapshot returns a copy of every current record.
func (s *Store) Snapshot() []model.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Revision returns the number of change notifications emitted so far.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Get returns the record for key, or nil if absent.
func (s *Store) Get(key model.JobKey) *model.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		rec := e.record
		return &rec
	}
	return nil
}

// Jobs returns the observable full-collection view. Every accepted mutation
// publishes one fresh snapshot.
func (s *Store) Jobs() *pubsub.Subject[[]model.JobRecord] {
	return s.jobs
}

// Job returns the observable single-record view for key. It yields nil when
// the job is absent or evicted.
func (s *Store) Job(key model.JobKey) *pubsub.Subject[*model.JobRecord] {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.keyed[key]
	if !ok {
		subj = pubsub.NewSubject[*model.JobRecord]()
		if e, exists := s.entries[key]; exists {
			rec := e.record
			subj.Publish(&rec)
		} else {
			subj.Publish(nil)
		}
		s.keyed[key] = subj
	}
	return subj
}

// Close tears down all observable views.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs.Close()
	for key, subj := range s.keyed {
		subj.Close()
		delete(s.keyed, key)
	}
}

// publishLocked emits the full snapshot plus per-key views for the touched
// keys. Caller holds the store lock.
func (s *Store) publishLocked(touched []model.JobKey) {
	s.revision++
	s.jobs.Publish(s.snapshotLocked())
	for _, key := range touched {
		subj, ok := s.keyed[key]
		if !ok {
			continue
		}
		if e, exists := s.entries[key]; exists {
			rec := e.record
			subj.Publish(&rec)
		} else {
			subj.Publish(nil)
			// An evicted job with no watchers will never emit again; drop
			// the subject so the keyed map does not grow without bound.
			if subj.Subscribers() == 0 {
				subj.Close()
				delete(s.keyed, key)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.Gauge("store.jobs", float64(len(s.entries)), nil)
	}
}

func (s *Store) snapshotLocked() []model.JobRecord {
	out := make([]model.JobRecord, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.record)
	}
	return out
}

func (s *Store) count(name string, tags map[string]string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, tags)
	}
}
