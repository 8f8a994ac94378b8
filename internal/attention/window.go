package attention

import "math"

// minDenominator keeps the percentage finite while the window is filling.
const minDenominator = 1e-6

// Sample is one classified observation.
type Sample struct {
	Timestamp float64
	Status    Status
}

// Window keeps a trailing time window of samples and derives the attention
// percentage and the current at-screen streak from it.
//
// Timestamps are expected to be non-decreasing. A timestamp older than the
// newest retained sample is clamped up to it so the ordering holds.
type Window struct {
	seconds float64
	samples []Sample
}

// NewWindow creates a window of the given length in seconds.
func NewWindow(seconds float64) *Window {
	return &Window{seconds: seconds}
}

// Seconds returns the window length.
func (w *Window) Seconds() float64 { return w.seconds }

// SetWindowSeconds changes the window length. Retained samples are trimmed
// on the next Add or Compute.
func (w *Window) SetWindowSeconds(seconds float64) { w.seconds = seconds }

// Len returns the number of retained samples.
func (w *Window) Len() int { return len(w.samples) }

// Add appends a sample and drops everything older than ts - seconds.
func (w *Window) Add(ts float64, status Status) {
	if n := len(w.samples); n > 0 && ts < w.samples[n-1].Timestamp {
		ts = w.samples[n-1].Timestamp
	}
	w.samples = append(w.samples, Sample{Timestamp: ts, Status: status})
	w.trim(ts)
}

func (w *Window) trim(now float64) {
	cutoff := now - w.seconds
	i := 0
	for i < len(w.samples) && w.samples[i].Timestamp < cutoff {
		i++
	}
	if i == 0 {
		return
	}
	// shift in place so the backing array does not grow without bound
	n := copy(w.samples, w.samples[i:])
	w.samples = w.samples[:n]
}

// Compute returns (attention percent, focus streak seconds) as of now.
func (w *Window) Compute(now float64) (float64, float64) {
	w.trim(now)
	if len(w.samples) == 0 {
		return 0, 0
	}

	start := now - w.seconds
	attentive := 0.0
	prev := now
	for i := len(w.samples) - 1; i >= 0; i-- {
		s := w.samples[i]
		segStart := math.Max(s.Timestamp, start)
		if s.Status == AtScreen {
			attentive += math.Max(prev-segStart, 0)
		}
		prev = segStart
	}

	total := math.Min(w.seconds, now-w.samples[0].Timestamp)
	total = math.Max(total, minDenominator)
	percent := math.Max(math.Min(100*attentive/total, 100), 0)
	return percent, w.streak(now, start)
}

func (w *Window) streak(now, start float64) float64 {
	streak := 0.0
	prev := now
	for i := len(w.samples) - 1; i >= 0; i-- {
		s := w.samples[i]
		if s.Status != AtScreen {
			break
		}
		segStart := math.Max(s.Timestamp, start)
		streak += math.Max(prev-segStart, 0)
		prev = segStart
		if segStart <= start {
			break
		}
	}
	return math.Min(streak, math.Max(w.seconds, 0))
}
