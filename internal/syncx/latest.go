package syncx

import "time"

type latestValue struct {
	data []byte
	at   time.Time
}

// Latest holds the most recent byte payload from a single producer.
// Store takes ownership of the slice; Load hands back a private copy.
type Latest struct {
	g RWGuard[latestValue]
}

// Store replaces the payload.
func (l *Latest) Store(data []byte, at time.Time) {
	l.g.Set(latestValue{data: data, at: at})
}

// Load returns a copy of the payload, when it was stored, and whether one exists.
func (l *Latest) Load() ([]byte, time.Time, bool) {
	var (
		out []byte
		at  time.Time
	)
	l.g.View(func(v latestValue) {
		if v.data == nil {
			return
		}
		out = make([]byte, len(v.data))
		copy(out, v.data)
		at = v.at
	})
	return out, at, out != nil
}
