package attention

// Hysteresis debounces raw statuses: the stable status only flips after
// the same differing status has been seen on consecutive frames.
type Hysteresis struct {
	frames    int
	stable    Status
	candidate Status
	pending   bool
	count     int
}

// NewHysteresis creates a debouncer starting at NoFace.
func NewHysteresis(frames int) *Hysteresis {
	h := &Hysteresis{stable: NoFace}
	h.SetFrames(frames)
	return h
}

// SetFrames changes the number of consecutive frames needed for a flip.
func (h *Hysteresis) SetFrames(frames int) {
	if frames < 1 {
		frames = 1
	}
	h.frames = frames
}

// Frames returns the current requirement.
func (h *Hysteresis) Frames() int { return h.frames }

// Update feeds one raw status and returns the stable status.
func (h *Hysteresis) Update(incoming Status) Status {
	if incoming == h.stable {
		h.pending = false
		h.count = 0
		return h.stable
	}

	if h.pending && incoming == h.candidate {
		h.count++
	} else {
		h.candidate = incoming
		h.pending = true
		h.count = 1
	}

	if h.count >= h.frames {
		h.stable = h.candidate
		h.pending = false
		h.count = 0
	}
	return h.stable
}
