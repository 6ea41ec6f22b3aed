package testutil

import (
	"time"

	"github.com/clusterview/clusterview/internal/domain/model"
)

// JobRecordBuilder provides a fluent interface for building JobRecord values
// for testing.
type JobRecordBuilder struct {
	rec model.JobRecord
}

// NewJobRecord creates a JobRecordBuilder with sensible defaults.
func NewJobRecord() *JobRecordBuilder {
	return &JobRecordBuilder{
		rec: model.JobRecord{
			JobID:     "100",
			Hostname:  "hpc-a",
			State:     model.JobStateRunning,
			Name:      "train-model",
			User:      "alice",
			Partition: "gpu",
			CPUs:      4,
			UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the job ID.
func (b *JobRecordBuilder) WithID(id string) *JobRecordBuilder {
	b.rec.JobID = id
	return b
}

// WithHost sets the hostname.
func (b *JobRecordBuilder) WithHost(hostname string) *JobRecordBuilder {
	b.rec.Hostname = hostname
	return b
}

// WithState sets the job state.
func (b *JobRecordBuilder) WithState(state model.JobState) *JobRecordBuilder {
	b.rec.State = state
	return b
}

// WithUser sets the submitting user.
func (b *JobRecordBuilder) WithUser(user string) *JobRecordBuilder {
	b.rec.User = user
	return b
}

// WithUpdatedAt sets the ordering timestamp.
func (b *JobRecordBuilder) WithUpdatedAt(ts time.Time) *JobRecordBuilder {
	b.rec.UpdatedAt = ts
	return b
}

// WithArrayTask marks the record as task idx of the given array job.
func (b *JobRecordBuilder) WithArrayTask(arrayJobID string, idx int) *JobRecordBuilder {
	b.rec.ArrayJobID = &arrayJobID
	b.rec.ArrayTaskID = &idx
	return b
}

// Build returns the constructed record.
func (b *JobRecordBuilder) Build() model.JobRecord {
	return b.rec
}
