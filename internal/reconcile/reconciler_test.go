package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterview/clusterview/internal/domain/model"
)

// spyApplier records every store call the reconciler makes.
type spyApplier struct {
	mu      sync.Mutex
	singles []model.UpdateEnvelope
	batches [][]model.UpdateEnvelope
}

func (s *spyApplier) ApplyUpdate(env model.UpdateEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singles = append(s.singles, env)
}

func (s *spyApplier) ApplyBatch(envs []model.UpdateEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, envs)
}

func (s *spyApplier) counts() (singles, batches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.singles), len(s.batches)
}

func (s *spyApplier) lastBatch() []model.UpdateEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func normalEnv(id string, state model.JobState) model.UpdateEnvelope {
	return model.NewEnvelope(model.JobRecord{
		JobID:     id,
		Hostname:  "hpc-a",
		State:     state,
		UpdatedAt: time.Now(),
	}, model.SourceWebSocket, model.PriorityNormal)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEnqueue_DebouncesBurstIntoOneBatch(t *testing.T) {
	spy := &spyApplier{}
	r := New(Options{Applier: spy, DebounceWindow: 30 * time.Millisecond})
	defer r.Close()

	for i := 0; i < 10; i++ {
		r.Enqueue(normalEnv(string(rune('a'+i)), model.JobStateRunning))
	}

	_, batches := spy.counts()
	assert.Zero(t, batches, "nothing should flush before the window elapses")

	waitFor(t, func() bool { _, b := spy.counts(); return b == 1 }, "expected one batched flush")
	assert.Len(t, spy.lastBatch(), 10)

	// No further flush happens.
	time.Sleep(60 * time.Millisecond)
	singles, batches := spy.counts()
	assert.Zero(t, singles)
	assert.Equal(t, 1, batches)
}

func TestEnqueue_HighPriorityFlushesImmediately(t *testing.T) {
	spy := &spyApplier{}
	r := New(Options{Applier: spy, DebounceWindow: time.Hour})
	defer r.Close()

	env := normalEnv("100", model.JobStateRunning)
	env.Priority = model.PriorityHigh
	env.Source = model.SourceAPI
	r.Enqueue(env)

	singles, _ := spy.counts()
	require.Equal(t, 1, singles, "high priority must bypass the debounce window")
}

func TestEnqueue_PreservesArrivalOrderWithinFlush(t *testing.T) {
	spy := &spyApplier{}
	r := New(Options{Applier: spy, DebounceWindow: 20 * time.Millisecond})
	defer r.Close()

	r.Enqueue(normalEnv("1", model.JobStatePending))
	r.EnqueueBatch([]model.UpdateEnvelope{
		normalEnv("2", model.JobStateRunning),
		normalEnv("3", model.JobStateCompleted),
	})

	waitFor(t, func() bool { _, b := spy.counts(); return b == 1 }, "expected one flush")
	batch := spy.lastBatch()
	require.Len(t, batch, 3)
	assert.Equal(t, "1", batch[0].Key.JobID)
	assert.Equal(t, "2", batch[1].Key.JobID)
	assert.Equal(t, "3", batch[2].Key.JobID)
}

func TestFlush_AppliesPendingImmediately(t *testing.T) {
	spy := &spyApplier{}
	r := New(Options{Applier: spy, DebounceWindow: time.Hour})
	defer r.Close()

	r.Enqueue(normalEnv("1", model.JobStateRunning))
	r.Flush()

	_, batches := spy.counts()
	assert.Equal(t, 1, batches)

	// Flushing again with nothing pending is a no-op.
	r.Flush()
	_, batches = spy.counts()
	assert.Equal(t, 1, batches)
}

// gatedApplier parks ApplyUpdate until released so teardown races can be
// staged deterministically.
type gatedApplier struct {
	spyApplier
	entered chan struct{}
	release chan struct{}
}

func newGatedApplier() *gatedApplier {
	return &gatedApplier{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedApplier) ApplyUpdate(env model.UpdateEnvelope) {
	close(g.entered)
	<-g.release
	g.spyApplier.ApplyUpdate(env)
}

func TestClose_BlocksUntilImmediateFlushLands(t *testing.T) {
	gated := newGatedApplier()
	r := New(Options{Applier: gated, DebounceWindow: time.Hour})

	high := normalEnv("1", model.JobStateRunning)
	high.Priority = model.PriorityHigh
	go r.Enqueue(high)
	<-gated.entered

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a flush was mid-apply")
	case <-time.After(30 * time.Millisecond):
	}

	close(gated.release)
	<-closed

	// Once Close has returned, nothing else reaches the store.
	late := normalEnv("2", model.JobStateRunning)
	late.Priority = model.PriorityHigh
	r.Enqueue(late)
	singles, _ := gated.counts()
	assert.Equal(t, 1, singles)
}

func TestClose_DiscardsPendingAndStopsTimer(t *testing.T) {
	spy := &spyApplier{}
	r := New(Options{Applier: spy, DebounceWindow: 20 * time.Millisecond})

	r.Enqueue(normalEnv("1", model.JobStateRunning))
	r.Close()

	time.Sleep(60 * time.Millisecond)
	singles, batches := spy.counts()
	assert.Zero(t, singles)
	assert.Zero(t, batches, "no flush may happen after Close")

	// Late arrivals are silently dropped.
	r.Enqueue(normalEnv("2", model.JobStateRunning))
	high := normalEnv("3", model.JobStateRunning)
	high.Priority = model.PriorityHigh
	r.Enqueue(high)
	r.EnqueueBatch([]model.UpdateEnvelope{normalEnv("4", model.JobStatePending)})

	time.Sleep(40 * time.Millisecond)
	singles, batches = spy.counts()
	assert.Zero(t, singles)
	assert.Zero(t, batches)
}
