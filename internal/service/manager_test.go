package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/testutil"
)

func newTestManager(t *testing.T, api *jobStubAPI, mutate func(*ManagerOptions)) *Manager {
	t.Helper()
	opts := ManagerOptions{
		API:            api,
		Hosts:          []string{"hpc-a", "hpc-b"},
		PollInterval:   time.Hour,
		DebounceWindow: 20 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(ManagerOptions{Hosts: []string{"hpc-a"}})
	assert.ErrorContains(t, err, "SchedulerAPI is required")

	_, err = NewManager(ManagerOptions{API: newJobStubAPI()})
	assert.ErrorContains(t, err, "at least one host")

	_, err = NewManager(ManagerOptions{
		API:          newJobStubAPI(),
		Hosts:        []string{"hpc-a"},
		WebSocketURL: "http://not-a-ws-scheme",
	})
	assert.Error(t, err)
}

func TestStart_PollingOnlyFillsStore(t *testing.T) {
	api := newJobStubAPI()
	api.jobs["hpc-a"] = []model.JobRecord{testutil.NewJobRecord().WithID("1").Build()}
	api.jobs["hpc-b"] = []model.JobRecord{
		testutil.NewJobRecord().WithID("2").WithHost("hpc-b").Build(),
	}
	m := newTestManager(t, api, nil)

	m.Start(context.Background())

	require.Eventually(t, func() bool { return len(m.Snapshot()) == 2 },
		time.Second, 5*time.Millisecond)

	// The status observable exists without a push channel and reports the
	// polling source.
	status := m.ConnectionStatus()
	require.NotNil(t, status)
	st, ok := status.Value()
	require.True(t, ok)
	assert.False(t, st.Connected)
	assert.Equal(t, model.ConnectionPolling, st.Source)
}

func TestStart_IsIdempotent(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, nil)

	m.Start(context.Background())
	m.Start(context.Background())

	require.Eventually(t, func() bool { return api.count("hpc-a") >= 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, api.count("hpc-a"))
}

func TestStart_FallsBackToRESTWhenChannelUnreachable(t *testing.T) {
	api := newJobStubAPI()
	api.jobs["hpc-a"] = []model.JobRecord{testutil.NewJobRecord().Build()}
	m := newTestManager(t, api, func(o *ManagerOptions) {
		o.WebSocketURL = "ws://127.0.0.1:1/ws"
		o.InitialSnapshotTimeout = 30 * time.Millisecond
		o.InitialBackoff = time.Hour
	})

	m.Start(context.Background())

	// The dial fails, polling kicks in, and data still arrives.
	require.Eventually(t, func() bool { return len(m.Snapshot()) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestHandleInitial_AppliesSnapshotsPerHost(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, nil)

	m.HandleInitial(map[string][]model.JobRecord{
		"hpc-a": {
			testutil.NewJobRecord().WithID("1").Build(),
			testutil.NewJobRecord().WithID("2").Build(),
		},
		"hpc-b": {testutil.NewJobRecord().WithID("3").WithHost("hpc-b").Build()},
	})

	assert.Len(t, m.Snapshot(), 3)
	states, ok := m.HostStates().Value()
	require.True(t, ok)
	assert.Equal(t, model.HostSyncSuccess, states["hpc-a"].Status)
	assert.Equal(t, model.DataSourceLive, states["hpc-b"].DataSource)
}

func TestHandleStateChange_NormalPriorityIsDebounced(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, nil)

	rec := testutil.NewJobRecord().WithID("9").Build()
	m.HandleStateChange(rec)

	assert.Empty(t, m.Snapshot())
	require.Eventually(t, func() bool { return len(m.Snapshot()) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestHandleStateChange_ViewedJobBypassesDebounce(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, func(o *ManagerOptions) {
		o.DebounceWindow = time.Hour
	})

	rec := testutil.NewJobRecord().WithID("9").Build()
	m.SetCurrentViewJob(rec.Key())
	m.HandleStateChange(rec)

	// Applied synchronously, no window wait.
	require.Len(t, m.Snapshot(), 1)
}

func TestHandleBatchUpdate_SplitsViewedJobOut(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, func(o *ManagerOptions) {
		o.DebounceWindow = time.Hour
	})

	viewed := testutil.NewJobRecord().WithID("1").Build()
	other := testutil.NewJobRecord().WithID("2").Build()
	m.SetCurrentViewJob(viewed.Key())

	m.HandleBatchUpdate([]model.JobRecord{viewed, other})

	// Only the viewed record lands before the window elapses.
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "1", snap[0].JobID)
}

func TestConnectionTransitions_TogglePolling(t *testing.T) {
	api := newJobStubAPI()
	m := newTestManager(t, api, nil)
	m.Start(context.Background())
	m.syncer.StopPolling()

	m.HandleConnectionDown()
	assert.True(t, m.syncer.Polling())

	m.HandleConnectionUp()
	assert.False(t, m.syncer.Polling())
}

func TestGroupedJobs_RecomputedOnStoreEmission(t *testing.T) {
	api := newJobStubAPI()
	api.jobs["hpc-a"] = []model.JobRecord{
		testutil.NewJobRecord().WithID("100_1").WithArrayTask("100", 1).Build(),
		testutil.NewJobRecord().WithID("100_2").WithArrayTask("100", 2).Build(),
		testutil.NewJobRecord().WithID("200").Build(),
	}
	m := newTestManager(t, api, nil)
	m.Start(context.Background())

	unsub, ch := m.GroupedJobs().Subscribe()
	defer unsub()

	require.Eventually(t, func() bool {
		select {
		case view := <-ch:
			return len(view.Groups) == 1 && len(view.Residual) == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestCancelJob_RefetchesAtHighPriority(t *testing.T) {
	api := newJobStubAPI()
	cancelled := testutil.NewJobRecord().WithID("42").WithState(model.JobStateCancelled).Build()
	api.record = &cancelled
	m := newTestManager(t, api, func(o *ManagerOptions) {
		o.DebounceWindow = time.Hour
	})

	key := model.JobKey{Hostname: "hpc-a", JobID: "42"}
	resp, err := m.CancelJob(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, resp.Cancelled)

	// The refetched terminal state is applied immediately.
	got := m.stor.Get(key)
	require.NotNil(t, got)
	assert.Equal(t, model.JobStateCancelled, got.State)
}

func TestCancelJob_PropagatesCancelError(t *testing.T) {
	api := newJobStubAPI()
	api.cancelErr = assert.AnError
	m := newTestManager(t, api, nil)

	_, err := m.CancelJob(context.Background(), model.JobKey{Hostname: "hpc-a", JobID: "42"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, api.calls())
}

func TestDestroy_LateNetworkResponseDoesNotMutateStore(t *testing.T) {
	api := newJobStubAPI()
	api.gate = make(chan struct{})
	api.jobs["hpc-a"] = []model.JobRecord{testutil.NewJobRecord().Build()}
	m := newTestManager(t, api, nil)

	done := make(chan struct{})
	go func() {
		_ = m.SyncHost(context.Background(), "hpc-a")
		close(done)
	}()
	require.Eventually(t, func() bool { return api.count("hpc-a") == 1 },
		time.Second, 5*time.Millisecond)

	m.Destroy()
	close(api.gate)
	<-done

	assert.Empty(t, m.Snapshot())
}

func TestDestroy_IsIdempotent(t *testing.T) {
	m := newTestManager(t, newJobStubAPI(), nil)
	m.Start(context.Background())
	m.Destroy()
	m.Destroy()
}
