package estimator

import (
	"context"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

// Smoothed applies an exponential moving average to the gaze offsets of an
// underlying estimator. The first observation seeds the average; frames
// without a face leave it untouched. Not safe for concurrent use.
type Smoothed struct {
	inner  Estimator
	alpha  func() float64
	seeded bool
	gazeX  float64
	gazeY  float64
}

// NewSmoothed wraps inner. alpha is read on every frame so settings changes apply live.
func NewSmoothed(inner Estimator, alpha func() float64) *Smoothed {
	return &Smoothed{inner: inner, alpha: alpha}
}

func (s *Smoothed) Estimate(ctx context.Context, frame []byte) (*attention.Estimate, error) {
	est, err := s.inner.Estimate(ctx, frame)
	if err != nil || est == nil {
		return est, err
	}
	s.apply(est)
	return est, nil
}

func (s *Smoothed) apply(est *attention.Estimate) {
	if !s.seeded {
		s.gazeX, s.gazeY, s.seeded = est.GazeX, est.GazeY, true
	} else {
		a := s.alpha()
		s.gazeX = a*est.GazeX + (1-a)*s.gazeX
		s.gazeY = a*est.GazeY + (1-a)*s.gazeY
	}
	est.GazeX, est.GazeY = s.gazeX, s.gazeY
}

func (s *Smoothed) Close() error { return s.inner.Close() }
