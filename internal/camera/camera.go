// Package camera provides frame capture from a local video device.
package camera

import (
	"context"
	"errors"
	"time"
)

// ErrReadFailed reports a transient read failure. Callers back off and retry.
var ErrReadFailed = errors.New("camera read failed")

// Frame is one captured image, JPEG encoded.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Captured time.Time
}

// Source yields frames from an opened device.
type Source interface {
	Read() (Frame, error)
	Close() error
}

// Opener opens a Source for the given device settings.
type Opener interface {
	Open(ctx context.Context, cfg Config) (Source, error)
}

// Config selects the device and requested capture format.
type Config struct {
	Index  int
	Width  int
	Height int
	FPS    int
}
