package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/model"
	apperrors "github.com/clusterview/clusterview/internal/errors"
	obserrors "github.com/clusterview/clusterview/internal/observability/errors"
	"github.com/clusterview/clusterview/internal/observability/statsd"
	"github.com/clusterview/clusterview/internal/pubsub"
)

// DefaultPollInterval is the fallback polling cadence while the push channel
// is down.
const DefaultPollInterval = 60 * time.Second

// SnapshotStore is the subset of the job store the syncer writes through.
type SnapshotStore interface {
	ReplaceHostSnapshot(hostname string, records []model.JobRecord)
}

// SyncerOptions groups dependencies for the host sync coordinator.
type SyncerOptions struct {
	API   core.SchedulerAPI // Required: REST port
	Store SnapshotStore     // Required: snapshot sink
	Hosts []string          // Required: configured hosts

	Cache        core.SnapshotCache // Optional: last-known-snapshot fallback
	PollInterval time.Duration      // Optional: defaults to DefaultPollInterval
	StatusQuery  model.StatusQuery  // Optional: narrows every snapshot fetch
	Logger       *slog.Logger       // Optional: structured logger
	Metrics      statsd.Sink        // Optional: metrics sink
}

// Syncer drives per-host REST snapshot fetching: the pull channel. Concurrent
// callers for the same host share one in-flight request, and the polling loop
// runs only while the push channel is down.
type Syncer struct {
	api          core.SchedulerAPI
	store        SnapshotStore
	cache        core.SnapshotCache
	hosts        []string
	pollInterval time.Duration
	query        model.StatusQuery
	logger       *slog.Logger
	metrics      statsd.Sink

	group  singleflight.Group
	states *pubsub.Subject[map[string]model.HostSyncState]

	mu       sync.Mutex
	byHost   map[string]model.HostSyncState
	stopPoll chan struct{}
	dead     bool
}

// NewSyncer constructs a Syncer with one idle HostSyncState per configured
// host.
func NewSyncer(opts SyncerOptions) (*Syncer, error) {
	if opts.API == nil {
		return nil, errors.New("SchedulerAPI is required")
	}
	if opts.Store == nil {
		return nil, errors.New("SnapshotStore is required")
	}
	if len(opts.Hosts) == 0 {
		return nil, errors.New("at least one host is required")
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Syncer{
		api:          opts.API,
		store:        opts.Store,
		cache:        opts.Cache,
		hosts:        append([]string(nil), opts.Hosts...),
		pollInterval: interval,
		query:        opts.StatusQuery,
		logger:       logger.With("component", "host_syncer"),
		metrics:      opts.Metrics,
		states:       pubsub.NewSubject[map[string]model.HostSyncState](),
		byHost:       make(map[string]model.HostSyncState, len(opts.Hosts)),
	}
	for _, host := range s.hosts {
		s.byHost[host] = model.HostSyncState{Hostname: host, Status: model.HostSyncIdle}
	}
	s.publishStates()
	return s, nil
}

// Hosts returns the configured host list.
func (s *Syncer) Hosts() []string {
	return append([]string(nil), s.hosts...)
}

// States returns the observable per-host sync-state map.
func (s *Syncer) States() *pubsub.Subject[map[string]model.HostSyncState] {
	return s.states
}

// HostState returns the current sync state for one host.
func (s *Syncer) HostState(hostname string) (model.HostSyncState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byHost[hostname]
	return st, ok
}

// SyncHost fetches a full snapshot for one host. A second call while one is
// pending joins the in-flight request instead of issuing a duplicate.
func (s *Syncer) SyncHost(ctx context.Context, hostname string) error {
	if !s.knownHost(hostname) {
		return apperrors.Validationf("unknown host %q", hostname)
	}
	_, err, _ := s.group.Do(hostname, func() (any, error) {
		return nil, s.fetch(ctx, hostname)
	})
	return err
}

// SyncAllHosts fans out SyncHost to every configured host in parallel.
// Per-host failures are recorded in HostSyncState and do not affect other
// hosts; the returned error is non-nil only when every host failed.
func (s *Syncer) SyncAllHosts(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	errs := make([]error, len(s.hosts))
	for i, host := range s.hosts {
		i, host := i, host
		g.Go(func() error {
			errs[i] = s.SyncHost(gctx, host)
			// Host failures are isolated; never cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(errs) {
		return errors.Join(errs...)
	}
	return nil
}

// ForceRefresh bypasses request coalescing: any in-flight fetch is forgotten
// so every host gets a genuinely fresh request.
func (s *Syncer) ForceRefresh(ctx context.Context) error {
	for _, host := range s.hosts {
		s.group.Forget(host)
	}
	return s.SyncAllHosts(ctx)
}

// StartPolling begins the fallback poll loop: one immediate sync, then one
// every poll interval. A no-op if polling is already running or the syncer is
// closed.
func (s *Syncer) StartPolling(ctx context.Context) {
	s.mu.Lock()
	if s.dead || s.stopPoll != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stopPoll = stop
	s.mu.Unlock()

	s.logger.Info("starting fallback polling", "interval", s.pollInterval)
	go s.pollLoop(ctx, stop)
}

// StopPolling halts the fallback poll loop. A no-op if it is not running.
func (s *Syncer) StopPolling() {
	s.mu.Lock()
	stop := s.stopPoll
	s.stopPoll = nil
	s.mu.Unlock()

	if stop != nil {
		s.logger.Info("stopping fallback polling")
		close(stop)
	}
}

// Polling reports whether the fallback loop is running.
func (s *Syncer) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopPoll != nil
}

// ApplyPushSnapshot records a full per-host snapshot delivered by the push
// channel, updating sync state and the last-known cache exactly like a
// successful poll.
func (s *Syncer) ApplyPushSnapshot(ctx context.Context, hostname string, records []model.JobRecord) {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.store.ReplaceHostSnapshot(hostname, records)
	s.writeThroughCache(ctx, hostname, records)
	now := time.Now()
	s.setState(model.HostSyncState{
		Hostname:   hostname,
		Status:     model.HostSyncSuccess,
		LastSyncAt: &now,
		DataSource: model.DataSourceLive,
	})
}

// Close stops polling and marks the syncer dead: fetch results that resolve
// afterwards are discarded without touching the store.
func (s *Syncer) Close() {
	s.StopPolling()
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
	s.states.Close()
}

func (s *Syncer) pollLoop(ctx context.Context, stop chan struct{}) {
	// Sync immediately so data keeps flowing from the moment the push
	// channel drops, then settle into the interval.
	_ = s.SyncAllHosts(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.SyncAllHosts(ctx)
		}
	}
}

// fetch performs one snapshot request and applies the outcome. The fixed poll
// interval is the natural retry; no backoff is layered on top.
func (s *Syncer) fetch(ctx context.Context, hostname string) error {
	s.setStateStatus(hostname, model.HostSyncLoading)

	start := time.Now()
	resp, err := s.api.Status(ctx, hostname, s.query)
	s.observe(hostname, start, err)

	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err != nil {
		s.handleFetchError(ctx, hostname, err)
		return err
	}

	s.store.ReplaceHostSnapshot(hostname, resp.Jobs)
	s.writeThroughCache(ctx, hostname, resp.Jobs)

	now := time.Now()
	s.setState(model.HostSyncState{
		Hostname:   hostname,
		Status:     model.HostSyncSuccess,
		LastSyncAt: &now,
		DataSource: model.DataSourceLive,
	})
	return nil
}

// handleFetchError records the failure and, when the host has never produced
// live data, serves the last-known cached snapshot so the view is not empty.
func (s *Syncer) handleFetchError(ctx context.Context, hostname string, err error) {
	s.logger.WarnContext(ctx, "host sync failed",
		"hostname", hostname,
		"error", err,
		"error_class", obserrors.Classify(err),
	)

	state := model.HostSyncState{
		Hostname:  hostname,
		Status:    model.HostSyncError,
		Err:       err.Error(),
		IsTimeout: apperrors.IsTimeout(err),
	}
	s.mu.Lock()
	prev := s.byHost[hostname]
	s.mu.Unlock()
	state.LastSyncAt = prev.LastSyncAt
	state.DataSource = prev.DataSource

	if s.cache != nil && prev.LastSyncAt == nil {
		if cached, cerr := s.cache.GetSnapshot(ctx, hostname); cerr == nil {
			s.store.ReplaceHostSnapshot(hostname, cached)
			state.DataSource = model.DataSourceCache
			s.count("sync.cache_fallback", hostname)
		} else if !errors.Is(cerr, core.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "snapshot cache read failed", "hostname", hostname, "error", cerr)
		}
	}

	s.setState(state)
}

func (s *Syncer) writeThroughCache(ctx context.Context, hostname string, records []model.JobRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutSnapshot(ctx, hostname, records); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache write failed", "hostname", hostname, "error", err)
	}
}

func (s *Syncer) knownHost(hostname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byHost[hostname]
	return ok
}

func (s *Syncer) setStateStatus(hostname string, status model.HostSyncStatus) {
	s.mu.Lock()
	st := s.byHost[hostname]
	st.Status = status
	s.byHost[hostname] = st
	dead := s.dead
	s.mu.Unlock()
	if !dead {
		s.publishStates()
	}
}

func (s *Syncer) setState(state model.HostSyncState) {
	s.mu.Lock()
	s.byHost[state.Hostname] = state
	dead := s.dead
	s.mu.Unlock()
	if !dead {
		s.publishStates()
	}
}

// publishStates emits a copy of the per-host state map.
func (s *Syncer) publishStates() {
	s.mu.Lock()
	snapshot := make(map[string]model.HostSyncState, len(s.byHost))
	for host, st := range s.byHost {
		snapshot[host] = st
	}
	s.mu.Unlock()
	s.states.Publish(snapshot)
}

func (s *Syncer) observe(hostname string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"host": hostname}
	s.metrics.Timing("sync.duration", time.Since(start), tags)
	if err != nil {
		tags["class"] = obserrors.Classify(err)
		s.metrics.Count("sync.errors", 1, tags)
	} else {
		s.metrics.Count("sync.success", 1, tags)
	}
}

func (s *Syncer) count(name, hostname string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, map[string]string{"host": hostname})
	}
}
