// Package estimator turns camera frames into head-pose and gaze estimates.
//
// The model runs in a separate inference service reached over gRPC; this
// package owns the client, response decoding and temporal gaze smoothing.
package estimator

import (
	"context"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

// Estimator returns an estimate for one JPEG frame, or nil when no face is present.
type Estimator interface {
	Estimate(ctx context.Context, frame []byte) (*attention.Estimate, error)
	Close() error
}

// Opener acquires an Estimator when the engine starts.
type Opener interface {
	Open(ctx context.Context) (Estimator, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Estimator, error)

func (f OpenerFunc) Open(ctx context.Context) (Estimator, error) { return f(ctx) }
