// Package orchestrator runs the capture, estimate, classify and publish loop.
package orchestrator

import "time"

const (
	// CameraRetryDelay is the pause after a failed camera read.
	CameraRetryDelay = 50 * time.Millisecond

	// StopTimeout bounds how long Stop waits for the current iteration.
	StopTimeout = 2 * time.Second

	// RecentEventsDefault is the number of events returned when none is requested.
	RecentEventsDefault = 20
)
