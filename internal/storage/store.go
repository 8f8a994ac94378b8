// Package storage persists frame metrics and events and serves time-range queries
package storage

import (
	"context"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
)

// Store is the frame/event log. Timestamps are unix seconds; ranges are inclusive.
type Store interface {
	AppendFrames(ctx context.Context, frames []attention.FrameMetrics) error
	AppendEvents(ctx context.Context, evs []events.Event) error
	Frames(ctx context.Context, start, end float64) ([]attention.FrameMetrics, error)
	Events(ctx context.Context, start, end float64) ([]events.Event, error)
	Close() error
}
