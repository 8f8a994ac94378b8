package attention

import "math"

// Thresholds bound how far a reading may drift from the baseline before the
// subject counts as looking away.
type Thresholds struct {
	YawDeg     float64
	PitchDeg   float64
	GazeRadius float64
}

// Classify maps a raw estimate to a status. A nil estimate means no face.
func Classify(est *Estimate, base Baseline, th Thresholds) Status {
	if est == nil {
		return NoFace
	}

	yawDelta := math.Abs(est.Yaw - base.Yaw)
	pitchDelta := math.Abs(est.Pitch - base.Pitch)
	gazeOffset := math.Hypot(est.GazeX-base.GazeX, est.GazeY-base.GazeY)

	if yawDelta > th.YawDeg || pitchDelta > th.PitchDeg || gazeOffset > th.GazeRadius {
		return LookingAway
	}
	return AtScreen
}
