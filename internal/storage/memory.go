package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
)

// MemoryStore is a bounded in-process log used when Redis is not configured.
type MemoryStore struct {
	mu        sync.RWMutex
	frames    []attention.FrameMetrics
	events    []events.Event
	maxFrames int
	maxEvents int
	retention time.Duration
}

// NewMemoryStore creates a memory store. Non-positive limits select defaults.
func NewMemoryStore(maxFrames, maxEvents int, retention time.Duration) *MemoryStore {
	if maxFrames <= 0 {
		maxFrames = DefaultMemoryMaxFrames
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMemoryMaxEvents
	}
	return &MemoryStore{maxFrames: maxFrames, maxEvents: maxEvents, retention: retention}
}

func frameTS(f attention.FrameMetrics) float64 { return f.Timestamp }

func eventTS(e events.Event) float64 { return e.Timestamp }

func (m *MemoryStore) AppendFrames(_ context.Context, frames []attention.FrameMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range frames {
		m.frames = insertSorted(m.frames, f, frameTS)
	}
	m.frames = bound(m.frames, m.maxFrames, retentionCutoff(m.frames, m.retention, frameTS), frameTS)
	return nil
}

func (m *MemoryStore) AppendEvents(_ context.Context, evs []events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range evs {
		m.events = insertSorted(m.events, ev, eventTS)
	}
	m.events = bound(m.events, m.maxEvents, retentionCutoff(m.events, m.retention, eventTS), eventTS)
	return nil
}

func (m *MemoryStore) Frames(_ context.Context, start, end float64) ([]attention.FrameMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return between(m.frames, start, end, frameTS), nil
}

func (m *MemoryStore) Events(_ context.Context, start, end float64) ([]events.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return between(m.events, start, end, eventTS), nil
}

func (m *MemoryStore) Close() error { return nil }

// retentionCutoff returns the oldest timestamp retention allows, or -Inf when disabled.
func retentionCutoff[T any](s []T, retention time.Duration, ts func(T) float64) float64 {
	if retention <= 0 || len(s) == 0 {
		return math.Inf(-1)
	}
	return ts(s[len(s)-1]) - retention.Seconds()
}

func insertSorted[T any](s []T, v T, ts func(T) float64) []T {
	t := ts(v)
	if n := len(s); n == 0 || ts(s[n-1]) <= t {
		return append(s, v)
	}
	i := sort.Search(len(s), func(i int) bool { return ts(s[i]) > t })
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// bound drops entries older than cutoff and any excess over limit, shifting
// the survivors down in place.
func bound[T any](s []T, limit int, cutoff float64, ts func(T) float64) []T {
	drop := sort.Search(len(s), func(i int) bool { return ts(s[i]) >= cutoff })
	if excess := len(s) - limit; excess > drop {
		drop = excess
	}
	if drop == 0 {
		return s
	}
	n := copy(s, s[drop:])
	clear(s[n:])
	return s[:n]
}

func between[T any](s []T, start, end float64, ts func(T) float64) []T {
	lo := sort.Search(len(s), func(i int) bool { return ts(s[i]) >= start })
	hi := sort.Search(len(s), func(i int) bool { return ts(s[i]) > end })
	if lo >= hi {
		return []T{}
	}
	out := make([]T, hi-lo)
	copy(out, s[lo:hi])
	return out
}
