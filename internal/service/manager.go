package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clusterview/clusterview/internal/adapters/realtime"
	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/arrayjobs"
	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/observability/statsd"
	"github.com/clusterview/clusterview/internal/pubsub"
	"github.com/clusterview/clusterview/internal/reconcile"
	"github.com/clusterview/clusterview/internal/store"
)

// DefaultInitialSnapshotTimeout bounds how long startup waits for the push
// channel's initial snapshot before falling back to REST.
const DefaultInitialSnapshotTimeout = 5 * time.Second

// GroupedJobs pairs array-job rollups with the plain jobs that belong to no
// array.
type GroupedJobs struct {
	Groups   []model.ArrayJobGroup
	Residual []model.JobRecord
}

// ManagerOptions groups everything needed to assemble a sync engine.
type ManagerOptions struct {
	API   core.SchedulerAPI // Required: REST port
	Hosts []string          // Required: hosts to track

	WebSocketURL string             // Optional: empty runs polling-only
	APIKey       string             // Optional: forwarded on the WS handshake
	Cache        core.SnapshotCache // Optional: last-known-snapshot fallback

	PollInterval           time.Duration     // Optional
	DebounceWindow         time.Duration     // Optional
	InitialBackoff         time.Duration     // Optional
	MaxBackoff             time.Duration     // Optional
	InitialSnapshotTimeout time.Duration     // Optional
	StatusQuery            model.StatusQuery // Optional

	Logger  *slog.Logger      // Optional: structured logger
	Metrics statsd.Sink       // Optional: metrics sink
	Dialer  *websocket.Dialer // Optional: overridden in tests
}

// Manager is the engine facade: it owns the store, the reconciler, both data
// channels and the derived views, and is the RealtimeHandler the push channel
// dispatches into.
type Manager struct {
	api     core.SchedulerAPI
	stor    *store.Store
	rec     *reconcile.Reconciler
	syncer  *Syncer
	tracker *ViewTracker
	channel *realtime.Channel
	logger  *slog.Logger

	grouped *pubsub.Subject[GroupedJobs]

	// pollStatus stands in for the channel's status subject in polling-only
	// mode, so ConnectionStatus is observable either way.
	pollStatus *pubsub.Subject[model.ConnectionStatus]

	initialTimeout time.Duration

	mu           sync.Mutex
	started      bool
	dead         bool
	initialSeen  bool
	initialTimer *time.Timer
	cancel       context.CancelFunc
	ctx          context.Context
	unsubJobs    func()
}

// NewManager assembles the engine. It performs no I/O; call Start to begin
// syncing.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("SchedulerAPI is required")
	}
	if len(opts.Hosts) == 0 {
		return nil, errors.New("at least one host is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	initialTimeout := opts.InitialSnapshotTimeout
	if initialTimeout <= 0 {
		initialTimeout = DefaultInitialSnapshotTimeout
	}

	stor := store.New(store.StoreOptions{Logger: logger, Metrics: opts.Metrics})
	rec := reconcile.New(reconcile.Options{
		Applier:        stor,
		DebounceWindow: opts.DebounceWindow,
		Logger:         logger,
		Metrics:        opts.Metrics,
	})
	syncer, err := NewSyncer(SyncerOptions{
		API:          opts.API,
		Store:        stor,
		Hosts:        opts.Hosts,
		Cache:        opts.Cache,
		PollInterval: opts.PollInterval,
		StatusQuery:  opts.StatusQuery,
		Logger:       logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	tracker, err := NewViewTracker(ViewTrackerOptions{
		API:     opts.API,
		Applier: rec,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		api:            opts.API,
		stor:           stor,
		rec:            rec,
		syncer:         syncer,
		tracker:        tracker,
		logger:         logger.With("component", "sync_manager"),
		grouped:        pubsub.NewSubject[GroupedJobs](),
		initialTimeout: initialTimeout,
	}

	if opts.WebSocketURL == "" {
		m.pollStatus = pubsub.NewSubject[model.ConnectionStatus]()
		m.pollStatus.Publish(model.ConnectionStatus{Connected: false, Source: model.ConnectionPolling})
	} else {
		ch, err := realtime.NewChannel(realtime.Options{
			URL:            opts.WebSocketURL,
			APIKey:         opts.APIKey,
			Handler:        m,
			Logger:         logger,
			Metrics:        opts.Metrics,
			Dialer:         opts.Dialer,
			InitialBackoff: opts.InitialBackoff,
			MaxBackoff:     opts.MaxBackoff,
		})
		if err != nil {
			return nil, err
		}
		m.channel = ch
	}
	return m, nil
}

// Start begins syncing. With a push channel configured it connects and waits
// up to the initial snapshot timeout for the server's initial message, then
// falls back to a REST sweep; without one it goes straight to polling.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.dead {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	runCtx := m.ctx
	m.mu.Unlock()

	// Recompute the grouped view on every store emission.
	unsub, jobsCh := m.stor.Jobs().Subscribe()
	m.mu.Lock()
	m.unsubJobs = unsub
	m.mu.Unlock()
	go m.groupLoop(jobsCh)

	if m.channel == nil {
		m.logger.Info("no websocket endpoint configured, running polling-only")
		m.syncer.StartPolling(runCtx)
		return
	}

	m.channel.Connect()
	m.mu.Lock()
	m.initialTimer = time.AfterFunc(m.initialTimeout, func() {
		m.mu.Lock()
		seen, dead := m.initialSeen, m.dead
		m.mu.Unlock()
		if seen || dead {
			return
		}
		m.logger.Warn("no initial snapshot from push channel, falling back to REST sweep",
			"timeout", m.initialTimeout)
		_ = m.syncer.SyncAllHosts(runCtx)
	})
	m.mu.Unlock()
}

// Destroy tears the engine down: no reconnects, no timer fires, no late
// network response mutates the store. Idempotent.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.dead {
		m.mu.Unlock()
		return
	}
	m.dead = true
	if m.initialTimer != nil {
		m.initialTimer.Stop()
		m.initialTimer = nil
	}
	cancel := m.cancel
	unsub := m.unsubJobs
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if m.channel != nil {
		m.channel.Destroy()
	}
	if m.pollStatus != nil {
		m.pollStatus.Close()
	}
	m.syncer.Close()
	m.rec.Close()
	if unsub != nil {
		unsub()
	}
	m.grouped.Close()
	m.stor.Close()
	m.logger.Info("sync manager destroyed")
}

// Jobs returns the observable full job snapshot.
func (m *Manager) Jobs() *pubsub.Subject[[]model.JobRecord] {
	return m.stor.Jobs()
}

// Job returns the observable record for one job key. It emits nil while the
// job is absent or after eviction.
func (m *Manager) Job(key model.JobKey) *pubsub.Subject[*model.JobRecord] {
	return m.stor.Job(key)
}

// GroupedJobs returns the observable array-rollup view.
func (m *Manager) GroupedJobs() *pubsub.Subject[GroupedJobs] {
	return m.grouped
}

// HostStates returns the observable per-host sync state map.
func (m *Manager) HostStates() *pubsub.Subject[map[string]model.HostSyncState] {
	return m.syncer.States()
}

// ConnectionStatus returns the observable connection status. In polling-only
// mode it holds a constant disconnected/polling value.
func (m *Manager) ConnectionStatus() *pubsub.Subject[model.ConnectionStatus] {
	if m.channel == nil {
		return m.pollStatus
	}
	return m.channel.Status()
}

// Snapshot returns the current jobs across all hosts.
func (m *Manager) Snapshot() []model.JobRecord {
	return m.stor.Snapshot()
}

// SyncHost triggers a coalesced snapshot fetch for one host.
func (m *Manager) SyncHost(ctx context.Context, hostname string) error {
	return m.syncer.SyncHost(ctx, hostname)
}

// SyncAllHosts triggers a parallel snapshot fetch across every host.
func (m *Manager) SyncAllHosts(ctx context.Context) error {
	return m.syncer.SyncAllHosts(ctx)
}

// ForceRefresh re-fetches every host, bypassing request coalescing.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	return m.syncer.ForceRefresh(ctx)
}

// ConnectWebSocket (re)opens the push channel. A no-op in polling-only mode
// or when already connected.
func (m *Manager) ConnectWebSocket() {
	if m.channel != nil {
		m.channel.Connect()
	}
}

// SetCurrentViewJob promotes updates for key to high priority.
func (m *Manager) SetCurrentViewJob(key model.JobKey) {
	m.tracker.SetCurrentViewJob(key)
}

// ClearCurrentViewJob demotes updates back to normal priority.
func (m *Manager) ClearCurrentViewJob() {
	m.tracker.ClearCurrentViewJob()
}

// FetchSingleJob fetches one job directly at high priority.
func (m *Manager) FetchSingleJob(ctx context.Context, key model.JobKey, force bool) error {
	return m.tracker.FetchSingleJob(ctx, key, force)
}

// JobOutput fetches the captured stdout/stderr for one job.
func (m *Manager) JobOutput(ctx context.Context, key model.JobKey) (string, error) {
	return m.api.JobOutput(ctx, key.JobID, key.Hostname)
}

// JobScript fetches the submission script for one job.
func (m *Manager) JobScript(ctx context.Context, key model.JobKey) (string, error) {
	return m.api.JobScript(ctx, key.JobID, key.Hostname)
}

// CancelJob asks the scheduler to cancel one job, then re-fetches it at high
// priority so the terminal state lands immediately.
func (m *Manager) CancelJob(ctx context.Context, key model.JobKey) (*model.CancelResponse, error) {
	resp, err := m.api.CancelJob(ctx, key.JobID, key.Hostname)
	if err != nil {
		return nil, err
	}
	if ferr := m.tracker.FetchSingleJob(ctx, key, true); ferr != nil {
		m.logger.WarnContext(ctx, "post-cancel refetch failed",
			"job_id", key.JobID, "hostname", key.Hostname, "error", ferr)
	}
	return resp, nil
}

// CreateWatcher registers an output watcher for one job.
func (m *Manager) CreateWatcher(ctx context.Context, req model.CreateWatcherRequest) error {
	return m.api.CreateWatcher(ctx, req)
}

// HandleInitial applies the push channel's full per-host snapshots.
func (m *Manager) HandleInitial(hosts map[string][]model.JobRecord) {
	m.mu.Lock()
	if m.dead {
		m.mu.Unlock()
		return
	}
	m.initialSeen = true
	if m.initialTimer != nil {
		m.initialTimer.Stop()
		m.initialTimer = nil
	}
	ctx := m.runCtxLocked()
	m.mu.Unlock()

	for hostname, records := range hosts {
		m.syncer.ApplyPushSnapshot(ctx, hostname, records)
	}
}

// HandleStateChange enqueues one push delta, promoted to high priority when
// it concerns the job currently on screen.
func (m *Manager) HandleStateChange(rec model.JobRecord) {
	env := model.NewEnvelope(rec, model.SourceWebSocket, m.tracker.Priority(rec.Key()))
	m.rec.Enqueue(env)
}

// HandleBatchUpdate enqueues a batch of push deltas. Records for the viewed
// job are split out and applied immediately.
func (m *Manager) HandleBatchUpdate(recs []model.JobRecord) {
	batch := make([]model.UpdateEnvelope, 0, len(recs))
	for _, rec := range recs {
		if m.tracker.IsCurrent(rec.Key()) {
			m.rec.Enqueue(model.NewEnvelope(rec, model.SourceWebSocket, model.PriorityHigh))
			continue
		}
		batch = append(batch, model.NewEnvelope(rec, model.SourceWebSocket, model.PriorityNormal))
	}
	m.rec.EnqueueBatch(batch)
}

// HandleConnectionUp stops fallback polling; push deltas take over.
func (m *Manager) HandleConnectionUp() {
	m.syncer.StopPolling()
}

// HandleConnectionDown starts fallback polling until the channel recovers.
func (m *Manager) HandleConnectionDown() {
	m.mu.Lock()
	ctx := m.runCtxLocked()
	dead := m.dead
	m.mu.Unlock()
	if dead {
		return
	}
	m.syncer.StartPolling(ctx)
}

func (m *Manager) groupLoop(jobsCh <-chan []model.JobRecord) {
	for records := range jobsCh {
		groups, residual := arrayjobs.Derive(records)
		m.mu.Lock()
		dead := m.dead
		m.mu.Unlock()
		if dead {
			return
		}
		m.grouped.Publish(GroupedJobs{Groups: groups, Residual: residual})
	}
}

// runCtxLocked returns the manager's run context, falling back to Background
// before Start. Caller holds the lock.
func (m *Manager) runCtxLocked() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}
