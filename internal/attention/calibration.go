package attention

// Baseline is the calibrated reference pose against which deltas are measured.
// The zero value is the uncalibrated baseline.
type Baseline struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	GazeX float64 `json:"gaze_x"`
	GazeY float64 `json:"gaze_y"`
	Ready bool    `json:"ready"`
}

// Progress is the published calibration state: the baseline in force plus
// how far the current cycle, if any, has got.
type Progress struct {
	Baseline
	InProgress   bool `json:"in_progress"`
	Collected    int  `json:"collected"`
	SampleFrames int  `json:"sample_frames"`
}

// Calibrator accumulates face-present estimates after a request and installs
// their per-channel mean as the new baseline. It is not safe for concurrent use.
type Calibrator struct {
	baseline     Baseline
	accumulating bool
	samples      [][4]float64
}

// NewCalibrator creates an idle calibrator with a zero baseline.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Request starts a new accumulation cycle, discarding partial progress.
func (c *Calibrator) Request() {
	c.accumulating = true
	c.samples = c.samples[:0]
}

// Accumulating reports whether a cycle is in progress.
func (c *Calibrator) Accumulating() bool { return c.accumulating }

// Collected returns how many samples the current cycle holds.
func (c *Calibrator) Collected() int { return len(c.samples) }

// Baseline returns the current baseline.
func (c *Calibrator) Baseline() Baseline { return c.baseline }

// Observe feeds one estimate. A nil estimate (no face) is skipped. It returns
// true exactly once per cycle, on the frame that completes it.
func (c *Calibrator) Observe(est *Estimate, sampleFrames int) bool {
	if !c.accumulating || est == nil {
		return false
	}
	if sampleFrames < 1 {
		sampleFrames = 1
	}

	c.samples = append(c.samples, [4]float64{est.Yaw, est.Pitch, est.GazeX, est.GazeY})
	if len(c.samples) < sampleFrames {
		return false
	}

	var sum [4]float64
	for _, s := range c.samples {
		for i := range sum {
			sum[i] += s[i]
		}
	}
	n := float64(len(c.samples))
	c.baseline = Baseline{
		Yaw:   sum[0] / n,
		Pitch: sum[1] / n,
		GazeX: sum[2] / n,
		GazeY: sum[3] / n,
		Ready: true,
	}
	c.accumulating = false
	c.samples = c.samples[:0]
	return true
}
