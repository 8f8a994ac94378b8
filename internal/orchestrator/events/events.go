// Package events detects attention state transitions and keeps a bounded log of recent ones
package events

import (
	"encoding/json"
	"sync"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

// Type names a transition or lifecycle event.
type Type string

const (
	NoFaceStart     Type = "NO_FACE_START"
	NoFaceEnd       Type = "NO_FACE_END"
	AwayStart       Type = "AWAY_START"
	AwayEnd         Type = "AWAY_END"
	CalibrationDone Type = "CALIBRATION_DONE"
)

// DefaultLogSize is how many events the recent log keeps.
const DefaultLogSize = 100

// Event is a discrete, timestamped occurrence. Details is empty except for
// CALIBRATION_DONE, which carries the baseline as JSON.
type Event struct {
	Timestamp float64 `json:"timestamp"`
	Type      Type    `json:"type"`
	Details   string  `json:"details"`
}

// Detect returns the events implied by a stable-status change, face presence first.
// Moving through NO_FACE never yields AWAY events.
func Detect(prev, curr attention.Status) []Type {
	var out []Type
	switch {
	case prev == attention.NoFace && curr != attention.NoFace:
		out = append(out, NoFaceEnd)
	case prev != attention.NoFace && curr == attention.NoFace:
		out = append(out, NoFaceStart)
	}
	switch {
	case prev == attention.AtScreen && curr == attention.LookingAway:
		out = append(out, AwayStart)
	case prev == attention.LookingAway && curr == attention.AtScreen:
		out = append(out, AwayEnd)
	}
	return out
}

// Calibrated builds the CALIBRATION_DONE event for a baseline.
func Calibrated(ts float64, base attention.Baseline) Event {
	details, _ := json.Marshal(base)
	return Event{Timestamp: ts, Type: CalibrationDone, Details: string(details)}
}

// Log is a bounded, concurrency-safe record of the most recent events.
type Log struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
}

// NewLog creates a log keeping at most maxSize events.
func NewLog(maxSize int) *Log {
	if maxSize <= 0 {
		maxSize = DefaultLogSize
	}
	return &Log{entries: make([]Event, 0, maxSize), maxSize: maxSize}
}

// Add appends an event, evicting the oldest when full.
func (l *Log) Add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ev)
	if len(l.entries) > l.maxSize {
		l.entries = l.entries[len(l.entries)-l.maxSize:]
	}
}

// Recent returns up to n events, oldest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if n > 0 && n < len(l.entries) {
		start = len(l.entries) - n
	}
	result := make([]Event, len(l.entries)-start)
	copy(result, l.entries[start:])
	return result
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
