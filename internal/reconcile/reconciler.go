// Package reconcile funnels every inbound job update, from either channel,
// into the store. High-priority envelopes flush immediately; normal-priority
// envelopes accumulate for a short debounce window and land as one batch so a
// burst of deltas produces a single downstream notification.
package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/observability/statsd"
)

// Applier is the subset of the job store the reconciler writes through.
type Applier interface {
	ApplyUpdate(env model.UpdateEnvelope)
	ApplyBatch(envs []model.UpdateEnvelope)
}

// DefaultDebounceWindow collapses almost-simultaneous deltas into one flush.
const DefaultDebounceWindow = 200 * time.Millisecond

// Options groups dependencies for a Reconciler.
type Options struct {
	Applier        Applier       // Required: where flushed envelopes land
	DebounceWindow time.Duration // Optional: defaults to DefaultDebounceWindow
	Logger         *slog.Logger  // Optional: structured logger
	Metrics        statsd.Sink   // Optional: metrics sink
}

// Reconciler serializes all store mutation through a single flush path.
// After Close, enqueued envelopes are discarded and no timer ever fires.
type Reconciler struct {
	applier Applier
	window  time.Duration
	logger  *slog.Logger
	metrics statsd.Sink

	mu      sync.Mutex
	pending []model.UpdateEnvelope
	timer   *time.Timer
	dead    bool
}

// New constructs a Reconciler. Applier must be non-nil.
func New(opts Options) *Reconciler {
	window := opts.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		applier: opts.Applier,
		window:  window,
		logger:  logger.With("component", "reconciler"),
		metrics: opts.Metrics,
	}
}

// Enqueue accepts one envelope. High-priority envelopes are applied
// immediately; normal-priority envelopes wait out the debounce window.
func (r *Reconciler) Enqueue(env model.UpdateEnvelope) {
	if env.Priority == model.PriorityHigh {
		// Apply under the lock: Close blocks until the flush lands, so no
		// envelope can mutate the store after Close returns.
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dead {
			return
		}
		r.applier.ApplyUpdate(env)
		r.count("reconcile.flush.immediate", 1)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return
	}
	r.pending = append(r.pending, env)
	r.scheduleLocked()
}

// EnqueueBatch accepts many envelopes at once, preserving their order within
// the next flush.
func (r *Reconciler) EnqueueBatch(envs []model.UpdateEnvelope) {
	if len(envs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return
	}
	r.pending = append(r.pending, envs...)
	r.scheduleLocked()
}

// ApplyUpdate satisfies Applier by delegating to Enqueue, so callers holding
// an Applier still route through the reconciler's priority and close barrier.
func (r *Reconciler) ApplyUpdate(env model.UpdateEnvelope) {
	r.Enqueue(env)
}

// ApplyBatch satisfies Applier by delegating to EnqueueBatch.
func (r *Reconciler) ApplyBatch(envs []model.UpdateEnvelope) {
	r.EnqueueBatch(envs)
}

// Flush applies everything pending right away, canceling the debounce timer.
func (r *Reconciler) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyLocked(r.takeLocked())
}

// Close discards pending envelopes and guarantees no debounce timer fires
// afterwards. Subsequent enqueues are no-ops.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if n := len(r.pending); n > 0 {
		r.logger.Debug("discarding pending updates on close", "count", n)
	}
	r.pending = nil
}

// scheduleLocked arms the debounce timer if it is not already running.
// Caller holds the lock.
func (r *Reconciler) scheduleLocked() {
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.window, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.applyLocked(r.takeLocked())
	})
}

// takeLocked detaches the pending batch and disarms the timer. Caller holds
// the lock. Returns nil when dead or empty.
func (r *Reconciler) takeLocked() []model.UpdateEnvelope {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.dead || len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil
	return batch
}

// applyLocked hands a batch to the store. Caller holds the lock; flushing
// under the lock is what makes Close a hard barrier.
func (r *Reconciler) applyLocked(batch []model.UpdateEnvelope) {
	if len(batch) == 0 {
		return
	}
	r.applier.ApplyBatch(batch)
	r.count("reconcile.flush.batched", int64(len(batch)))
}

func (r *Reconciler) count(name string, n int64) {
	if r.metrics != nil {
		r.metrics.Count(name, n, nil)
	}
}
