package attention

import "image"

// Estimate is a raw head-pose and gaze reading for one frame.
// Angles are in degrees, gaze offsets are normalised to the eye box.
type Estimate struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	GazeX float64
	GazeY float64
	BBox  image.Rectangle
}

// FrameMetrics is the per-frame output record.
type FrameMetrics struct {
	Timestamp          float64 `json:"timestamp"`
	Status             Status  `json:"status"`
	AttentionPercent   float64 `json:"attention_percent"`
	FocusStreakSeconds float64 `json:"focus_streak_seconds"`
	Yaw                float64 `json:"yaw"`
	Pitch              float64 `json:"pitch"`
	Roll               float64 `json:"roll"`
	GazeX              float64 `json:"gaze_x"`
	GazeY              float64 `json:"gaze_y"`
	FPS                float64 `json:"fps"`
}
