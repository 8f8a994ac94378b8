package storage

import "time"

const (
	DefaultBatcherMaxSize    = 48
	DefaultBatcherFlushDelay = 2 * time.Second

	// FlushTimeout bounds one asynchronous batch write.
	FlushTimeout = 5 * time.Second

	// DefaultMemoryMaxFrames caps the in-memory log (roughly one hour at 24 fps).
	DefaultMemoryMaxFrames = 24 * 3600
	DefaultMemoryMaxEvents = 10000

	DefaultKeyPrefix = "attention"
)
