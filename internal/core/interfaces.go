package core

import (
	"context"

	"github.com/clusterview/clusterview/internal/domain/model"
)

// This file contains the port interfaces between the sync engine and its
// adapters. Services depend on these contracts, not on concrete
// implementations.

// SchedulerAPI is the REST surface of the clusterview backend the sync engine
// consumes. One implementation talks to the real server; tests substitute
// mocks.
type SchedulerAPI interface {
	// Hosts lists the configured SLURM hosts.
	Hosts(ctx context.Context) ([]string, error)
	// Status fetches the full job snapshot for one host.
	Status(ctx context.Context, hostname string, query model.StatusQuery) (*model.StatusResponse, error)
	// Job fetches one job directly, bypassing the snapshot cadence.
	Job(ctx context.Context, jobID, hostname string) (*model.JobRecord, error)
	// JobOutput fetches the captured stdout/stderr for one job.
	JobOutput(ctx context.Context, jobID, hostname string) (string, error)
	// JobScript fetches the submission script for one job.
	JobScript(ctx context.Context, jobID, hostname string) (string, error)
	// CancelJob asks the scheduler to cancel one job.
	CancelJob(ctx context.Context, jobID, hostname string) (*model.CancelResponse, error)
	// CreateWatcher registers an output watcher for one job.
	CreateWatcher(ctx context.Context, req model.CreateWatcherRequest) error
}

// SnapshotCache stores the last successful per-host snapshot so a host outage
// degrades to stale data instead of an empty view.
type SnapshotCache interface {
	// PutSnapshot stores the snapshot for a host.
	PutSnapshot(ctx context.Context, hostname string, records []model.JobRecord) error
	// GetSnapshot returns the stored snapshot for a host, or ErrCacheMiss.
	GetSnapshot(ctx context.Context, hostname string) ([]model.JobRecord, error)
}

// RealtimeHandler receives parsed realtime messages from the push channel.
type RealtimeHandler interface {
	// HandleInitial applies a full per-host snapshot for every host present.
	HandleInitial(hosts map[string][]model.JobRecord)
	// HandleStateChange applies one job delta.
	HandleStateChange(rec model.JobRecord)
	// HandleBatchUpdate applies many job deltas as one batch.
	HandleBatchUpdate(recs []model.JobRecord)
	// HandleConnectionUp is invoked when the push channel opens.
	HandleConnectionUp()
	// HandleConnectionDown is invoked when the push channel closes or errors.
	HandleConnectionDown()
}
