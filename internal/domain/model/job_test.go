package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobState_Valid(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobStatePending, true},
		{JobStateRunning, true},
		{JobStateCompleted, true},
		{JobStateConfiguring, true},
		{JobStateSuspended, true},
		{JobState("WAITING"), false},
		{JobState(""), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.Valid(), "state %q", tt.state)
	}
}

func TestJobState_Terminal(t *testing.T) {
	assert.True(t, JobStateCompleted.Terminal())
	assert.True(t, JobStateNodeFail.Terminal())
	assert.False(t, JobStateRunning.Terminal())
	assert.False(t, JobStateCompleting.Terminal())
}

func TestJobState_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobState
		wantErr bool
	}{
		{name: "plain", input: "RUNNING", want: JobStateRunning},
		{name: "lowercase", input: "pending", want: JobStatePending},
		{name: "cancelled by user", input: "CANCELLED by 1234", want: JobStateCancelled},
		{name: "whitespace", input: "  COMPLETED ", want: JobStateCompleted},
		{name: "unknown", input: "EXPLODED", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s JobState
			err := s.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestJobRecord_Key(t *testing.T) {
	rec := JobRecord{JobID: "100", Hostname: "hpc-a"}
	assert.Equal(t, JobKey{Hostname: "hpc-a", JobID: "100"}, rec.Key())
	assert.Equal(t, "hpc-a/100", rec.Key().String())
}

func TestJobRecord_IsArrayTask(t *testing.T) {
	plain := JobRecord{JobID: "100", Hostname: "hpc-a"}
	assert.False(t, plain.IsArrayTask())

	arrayID := "99"
	task := JobRecord{JobID: "99_1", Hostname: "hpc-a", ArrayJobID: &arrayID}
	assert.True(t, task.IsArrayTask())

	empty := ""
	degenerate := JobRecord{JobID: "100", Hostname: "hpc-a", ArrayJobID: &empty}
	assert.False(t, degenerate.IsArrayTask())
}

func TestNewEnvelope_DefaultsTimestampFromRecord(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := JobRecord{JobID: "7", Hostname: "hpc-b", State: JobStateRunning, UpdatedAt: ts}

	env := NewEnvelope(rec, SourceWebSocket, PriorityNormal)
	assert.Equal(t, rec.Key(), env.Key)
	assert.Equal(t, ts, env.Timestamp)
	assert.Equal(t, SourceWebSocket, env.Source)
	assert.Equal(t, PriorityNormal, env.Priority)
}
