package estimator

import "time"

const (
	// InferMethod is the full gRPC method name of the inference call.
	InferMethod = "/attention.v1.GazeEstimator/Infer"

	// ServiceName is the name reported by the estimator's health service.
	ServiceName = "attention.v1.GazeEstimator"

	// Metadata keys carrying detector confidence floors.
	MinDetectionConfidenceKey = "x-min-detection-confidence"
	MinTrackingConfidenceKey  = "x-min-tracking-confidence"

	DefaultTimeout = 500 * time.Millisecond

	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	HealthCheckTimeout = 2 * time.Second

	// Frames are JPEG encoded; 8 MiB leaves headroom for 4K captures.
	MaxMessageSize = 8 << 20
)
