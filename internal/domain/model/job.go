// Package model defines the core data types shared across the clusterview
// job state synchronization engine.
package model

import (
	"fmt"
	"strings"
	"time"
)

// JobState represents a SLURM job state as reported by the scheduler.
type JobState string

const (
	// JobStatePending indicates the job is queued and waiting for resources.
	JobStatePending JobState = "PENDING"
	// JobStateRunning indicates the job is currently executing.
	JobStateRunning JobState = "RUNNING"
	// JobStateCompleted indicates the job finished successfully.
	JobStateCompleted JobState = "COMPLETED"
	// JobStateFailed indicates the job exited with a non-zero code.
	JobStateFailed JobState = "FAILED"
	// JobStateCancelled indicates the job was cancelled by a user or administrator.
	JobStateCancelled JobState = "CANCELLED"
	// JobStateTimeout indicates the job exceeded its time limit.
	JobStateTimeout JobState = "TIMEOUT"
	// JobStateConfiguring indicates resources are allocated but still being prepared.
	JobStateConfiguring JobState = "CONFIGURING"
	// JobStateCompleting indicates the job is in its epilogue phase.
	JobStateCompleting JobState = "COMPLETING"
	// JobStateNodeFail indicates the job was terminated by a node failure.
	JobStateNodeFail JobState = "NODE_FAIL"
	// JobStatePreempted indicates the job was preempted by a higher-priority job.
	JobStatePreempted JobState = "PREEMPTED"
	// JobStateSuspended indicates the job allocation is held but execution is suspended.
	JobStateSuspended JobState = "SUSPENDED"
)

// Valid returns true if the JobState is one SLURM reports.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateCompleted, JobStateFailed,
		JobStateCancelled, JobStateTimeout, JobStateConfiguring,
		JobStateCompleting, JobStateNodeFail, JobStatePreempted,
		JobStateSuspended:
		return true
	}
	return false
}

// Terminal returns true if the job can no longer change state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled,
		JobStateTimeout, JobStateNodeFail:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler so states parse from env
// and query parameters. SLURM occasionally reports annotated variants such as
// "CANCELLED by 1234"; the annotation is stripped.
func (s *JobState) UnmarshalText(text []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(text)))
	if base, _, found := strings.Cut(v, " "); found {
		v = base
	}
	js := JobState(v)
	if !js.Valid() {
		return fmt.Errorf("invalid JobState: %q", v)
	}
	*s = js
	return nil
}

// JobKey is the composite identity of a job: at most one live record exists
// per key across the whole store.
type JobKey struct {
	Hostname string `json:"hostname"`
	JobID    string `json:"job_id"`
}

// String renders the key for logs and metric tags.
func (k JobKey) String() string {
	return k.Hostname + "/" + k.JobID
}

// JobRecord is one scheduler-managed unit of work on one host. Updates
// replace the record wholesale; records are never partially merged.
type JobRecord struct {
	JobID     string   `json:"job_id"`
	Hostname  string   `json:"hostname"`
	State     JobState `json:"state"`
	Name      string   `json:"name"`
	User      string   `json:"user"`
	Partition string   `json:"partition,omitempty"`
	CPUs      int      `json:"cpus,omitempty"`
	Memory    string   `json:"memory,omitempty"`
	Nodelist  string   `json:"nodelist,omitempty"`

	SubmitTime *time.Time `json:"submit_time,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`

	// Array job metadata; nil for non-array jobs.
	ArrayJobID  *string `json:"array_job_id,omitempty"`
	ArrayTaskID *int    `json:"array_task_id,omitempty"`

	// UpdatedAt is the scheduler-side timestamp of this observation and the
	// ordering input for last-write-wins reconciliation.
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the composite identity of the record.
func (r *JobRecord) Key() JobKey {
	return JobKey{Hostname: r.Hostname, JobID: r.JobID}
}

// IsArrayTask returns true when the record belongs to a SLURM array job.
func (r *JobRecord) IsArrayTask() bool {
	return r.ArrayJobID != nil && *r.ArrayJobID != ""
}
