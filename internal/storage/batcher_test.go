package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/resilience"
)

type recordingStore struct {
	*MemoryStore
	mu         sync.Mutex
	frameCalls int
	eventCalls int
	err        error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore(0, 0, 0)}
}

func (r *recordingStore) AppendFrames(ctx context.Context, fs []attention.FrameMetrics) error {
	r.mu.Lock()
	r.frameCalls++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.AppendFrames(ctx, fs)
}

func (r *recordingStore) AppendEvents(ctx context.Context, evs []events.Event) error {
	r.mu.Lock()
	r.eventCalls++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.AppendEvents(ctx, evs)
}

func (r *recordingStore) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCalls
}

func count(t *testing.T, s Store) int {
	t.Helper()
	fs, err := s.Frames(context.Background(), 0, 1e12)
	require.NoError(t, err)
	return len(fs)
}

func TestBatcherFlushOnMaxSize(t *testing.T) {
	store := newRecordingStore()
	b := NewBatcher(store, nil, 3, time.Hour)
	defer b.Stop()

	for i := 0; i < 3; i++ {
		b.AddFrame(frame(float64(i), attention.AtScreen))
	}
	assert.Eventually(t, func() bool { return count(t, store) == 3 }, time.Second, 5*time.Millisecond)
}

func TestBatcherFlushOnDelay(t *testing.T) {
	store := newRecordingStore()
	b := NewBatcher(store, nil, 100, 20*time.Millisecond)
	defer b.Stop()

	b.AddFrame(frame(1, attention.AtScreen))
	b.AddEvent(events.Event{Timestamp: 1, Type: events.NoFaceEnd})

	assert.Eventually(t, func() bool { return count(t, store) == 1 }, time.Second, 5*time.Millisecond)
	evs, _ := store.Events(context.Background(), 0, 10)
	assert.Len(t, evs, 1)
}

func TestBatcherStopFlushesRemaining(t *testing.T) {
	store := newRecordingStore()
	b := NewBatcher(store, nil, 100, time.Hour)

	b.AddFrame(frame(1, attention.AtScreen))
	b.AddFrame(frame(2, attention.AtScreen))
	b.Stop()

	assert.Equal(t, 2, count(t, store))

	b.AddFrame(frame(3, attention.AtScreen))
	b.Stop()
	assert.Equal(t, 2, count(t, store), "adds after Stop should be ignored")
}

func TestBatcherFailureIsSwallowedAndTripsBreaker(t *testing.T) {
	store := newRecordingStore()
	store.err = errors.New("redis down")
	breaker := resilience.New(resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b := NewBatcher(store, breaker, 1, time.Hour)

	for i := 0; i < 4; i++ {
		b.AddFrame(frame(float64(i), attention.AtScreen))
	}
	b.Stop()

	assert.Equal(t, resilience.Open, breaker.State())
	assert.Equal(t, 0, store.calls(), "frames are written after events and never reached")
	assert.Equal(t, 0, count(t, store))
}
