package config

import (
	"github.com/GriffinCanCode/attention-guard/internal/attention"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
)

type CameraSettings struct {
	Index  int `yaml:"index" json:"index"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	FPS    int `yaml:"fps" json:"fps"`
}

type AttentionSettings struct {
	YawThresholdDeg        float64 `yaml:"yaw_threshold_deg" json:"yaw_threshold_deg"`
	PitchThresholdDeg      float64 `yaml:"pitch_threshold_deg" json:"pitch_threshold_deg"`
	GazeRadius             float64 `yaml:"gaze_radius" json:"gaze_radius"`
	SmoothingAlpha         float64 `yaml:"smoothing_alpha" json:"smoothing_alpha"`
	HysteresisFrames       int     `yaml:"hysteresis_frames" json:"hysteresis_frames"`
	WindowSeconds          float64 `yaml:"window_seconds" json:"window_seconds"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence" json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence" json:"min_tracking_confidence"`
}

type CalibrationSettings struct {
	SampleFrames int `yaml:"sample_frames" json:"sample_frames"`
}

// Settings is the runtime-tunable configuration. Values are swapped whole, never mutated.
type Settings struct {
	Camera      CameraSettings      `yaml:"camera" json:"camera"`
	Attention   AttentionSettings   `yaml:"attention" json:"attention"`
	Calibration CalibrationSettings `yaml:"calibration" json:"calibration"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Camera: CameraSettings{Index: 0, Width: 1280, Height: 720, FPS: 24},
		Attention: AttentionSettings{
			YawThresholdDeg:        18.0,
			PitchThresholdDeg:      15.0,
			GazeRadius:             0.28,
			SmoothingAlpha:         0.55,
			HysteresisFrames:       3,
			WindowSeconds:          30.0,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
		Calibration: CalibrationSettings{SampleFrames: 45},
	}
}

// Thresholds extracts the classifier thresholds.
func (s Settings) Thresholds() attention.Thresholds {
	return attention.Thresholds{
		YawDeg:     s.Attention.YawThresholdDeg,
		PitchDeg:   s.Attention.PitchThresholdDeg,
		GazeRadius: s.Attention.GazeRadius,
	}
}

// Validate reports the first out-of-range field as a CONFIG_INVALID error.
func (s Settings) Validate() error {
	a := s.Attention
	switch {
	case s.Camera.Index < 0:
		return invalid("camera.index", "must be >= 0")
	case s.Camera.Width <= 0 || s.Camera.Height <= 0:
		return invalid("camera.width/height", "must be positive")
	case s.Camera.FPS <= 0:
		return invalid("camera.fps", "must be positive")
	case a.YawThresholdDeg <= 0:
		return invalid("attention.yaw_threshold_deg", "must be positive")
	case a.PitchThresholdDeg <= 0:
		return invalid("attention.pitch_threshold_deg", "must be positive")
	case a.GazeRadius <= 0:
		return invalid("attention.gaze_radius", "must be positive")
	case a.SmoothingAlpha <= 0 || a.SmoothingAlpha > 1:
		return invalid("attention.smoothing_alpha", "must be in (0, 1]")
	case a.HysteresisFrames < 1:
		return invalid("attention.hysteresis_frames", "must be >= 1")
	case a.WindowSeconds <= 0:
		return invalid("attention.window_seconds", "must be positive")
	case a.MinDetectionConfidence < 0 || a.MinDetectionConfidence > 1:
		return invalid("attention.min_detection_confidence", "must be in [0, 1]")
	case a.MinTrackingConfidence < 0 || a.MinTrackingConfidence > 1:
		return invalid("attention.min_tracking_confidence", "must be in [0, 1]")
	case s.Calibration.SampleFrames < 1:
		return invalid("calibration.sample_frames", "must be >= 1")
	}
	return nil
}

func invalid(field, reason string) error {
	return apperrors.Newf(apperrors.CodeConfigInvalid, "%s %s", field, reason).
		WithMetadata("field", field)
}
