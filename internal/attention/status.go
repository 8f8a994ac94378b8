// Package attention implements per-frame attention classification: the trailing
// attention window, the hysteresis debouncer, calibration and the classifier.
package attention

import "fmt"

// Status is the attention classification of a single frame.
type Status uint8

const (
	NoFace Status = iota
	AtScreen
	LookingAway
)

var statusNames = [...]string{"NO_FACE", "AT_SCREEN", "LOOKING_AWAY"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// MarshalText encodes the status using its wire name.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a wire name.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus maps a wire name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return NoFace, fmt.Errorf("unknown status %q", name)
}
