// Package server provides HTTP and WebSocket handlers
package server

import "time"

const (
	// Default history range when no start is given.
	DefaultHistoryRange = 10 * time.Minute

	// MJPEG preview pacing, about 12.5 fps.
	VideoFrameInterval = 80 * time.Millisecond
	VideoBoundary      = "frame"

	// Per-message write deadline on the metrics stream.
	StreamWriteTimeout = 5 * time.Second

	// Upper bound on a settings request body.
	MaxSettingsBody = 64 << 10

	// IP-based rate limiting of mutating endpoints.
	IPRateLimitMessages = 10
	IPRateLimitWindow   = time.Second
	IPRateLimitEntryTTL = 10 * time.Minute
)
