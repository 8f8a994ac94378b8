package storage

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/resilience"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

// Batcher accumulates frames and events and writes them to a Store
// asynchronously. Write failures are logged and counted, never returned.
type Batcher struct {
	store      Store
	breaker    *resilience.Breaker
	maxSize    int
	flushDelay time.Duration

	mu      sync.Mutex
	frames  []attention.FrameMetrics
	events  []events.Event
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewBatcher creates a batcher. A nil breaker selects resilience.StorageConfig.
func NewBatcher(store Store, breaker *resilience.Breaker, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatcherMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatcherFlushDelay
	}
	if breaker == nil {
		breaker = resilience.New(resilience.StorageConfig())
	}
	return &Batcher{
		store:      store,
		breaker:    breaker,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		frames:     make([]attention.FrameMetrics, 0, maxSize),
	}
}

// AddFrame queues a frame for batched storage.
func (b *Batcher) AddFrame(f attention.FrameMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.frames = append(b.frames, f)
	b.scheduleLocked()
}

// AddEvent queues an event for batched storage.
func (b *Batcher) AddEvent(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.events = append(b.events, ev)
	b.scheduleLocked()
}

func (b *Batcher) scheduleLocked() {
	if len(b.frames)+len(b.events) >= b.maxSize {
		b.flushLocked()
		return
	}
	// The first pending item arms the timer; later ones do not push it back.
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.frames) == 0 && len(b.events) == 0 {
		return
	}
	frames, evs := b.frames, b.events
	b.frames = make([]attention.FrameMetrics, 0, b.maxSize)
	b.events = nil

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
		defer cancel()
		ctx, span := trace.StartSpan(ctx, "history_batch_flush")
		defer span.End()
		span.SetAttr("frames", len(frames))
		span.SetAttr("events", len(evs))

		log := trace.Logger(ctx)
		err := b.breaker.Execute(func() error {
			if err := b.store.AppendEvents(ctx, evs); err != nil {
				return err
			}
			return b.store.AppendFrames(ctx, frames)
		})
		if err != nil {
			span.SetAttr("error", err.Error())
			log.Warn("history batch write failed", "error", err, "frames", len(frames), "events", len(evs))
			return
		}
		log.Debug("history batch stored", "frames", len(frames), "events", len(evs))
	}()
}

// Stop flushes remaining items, waits for in-flight writes and rejects further adds.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.wg.Wait()
}
