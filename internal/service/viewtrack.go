package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/reconcile"
)

// ViewTrackerOptions groups dependencies for the view tracker.
type ViewTrackerOptions struct {
	API     core.SchedulerAPI // Required: targeted job fetches
	Applier reconcile.Applier // Required: where fetched records land
	Logger  *slog.Logger      // Optional: structured logger
}

// ViewTracker remembers which single job the consumer is currently looking
// at. Updates for that job are promoted to high priority so they punch
// through debouncing and stale-timestamp races, and FetchSingleJob gives the
// viewed job its own refresh path outside the snapshot cadence.
type ViewTracker struct {
	api     core.SchedulerAPI
	applier reconcile.Applier
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	current *model.JobKey
}

// NewViewTracker constructs a ViewTracker.
func NewViewTracker(opts ViewTrackerOptions) (*ViewTracker, error) {
	if opts.API == nil {
		return nil, errors.New("SchedulerAPI is required")
	}
	if opts.Applier == nil {
		return nil, errors.New("Applier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewTracker{
		api:     opts.API,
		applier: opts.Applier,
		logger:  logger.With("component", "view_tracker"),
	}, nil
}

// SetCurrentViewJob marks key as the job currently on screen.
func (t *ViewTracker) SetCurrentViewJob(key model.JobKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key
	t.current = &k
}

// ClearCurrentViewJob forgets the viewed job; subsequent updates flow at
// normal priority again.
func (t *ViewTracker) ClearCurrentViewJob() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

// CurrentViewJob returns the viewed job key, if any.
func (t *ViewTracker) CurrentViewJob() (model.JobKey, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return model.JobKey{}, false
	}
	return *t.current, true
}

// IsCurrent reports whether key is the job currently on screen.
func (t *ViewTracker) IsCurrent(key model.JobKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && *t.current == key
}

// Priority returns the write priority updates for key should carry.
func (t *ViewTracker) Priority(key model.JobKey) model.UpdatePriority {
	if t.IsCurrent(key) {
		return model.PriorityHigh
	}
	return model.PriorityNormal
}

// FetchSingleJob fetches one job directly and enqueues it as a high-priority
// update. Concurrent fetches for the same key coalesce; force bypasses the
// coalescing so a refresh always hits the network.
func (t *ViewTracker) FetchSingleJob(ctx context.Context, key model.JobKey, force bool) error {
	if force {
		t.group.Forget(key.String())
	}
	_, err, _ := t.group.Do(key.String(), func() (any, error) {
		return nil, t.fetch(ctx, key)
	})
	return err
}

func (t *ViewTracker) fetch(ctx context.Context, key model.JobKey) error {
	rec, err := t.api.Job(ctx, key.JobID, key.Hostname)
	if err != nil {
		t.logger.WarnContext(ctx, "single job fetch failed",
			"job_id", key.JobID, "hostname", key.Hostname, "error", err)
		return err
	}
	t.applier.ApplyUpdate(model.NewEnvelope(*rec, model.SourceAPI, model.PriorityHigh))
	return nil
}
