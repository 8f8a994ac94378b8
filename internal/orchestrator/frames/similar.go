package frames

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder
	"log/slog"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

// Reuser caches the estimate of the last inferred frame together with its
// perceptual hash. It is owned by the acquisition loop and not safe for concurrent use.
type Reuser struct {
	maxDistance int
	maxReuse    int

	refHash  *goimagehash.ImageHash
	estimate *attention.Estimate
	reused   int

	pending *goimagehash.ImageHash
}

// NewReuser creates a reuser. Non-positive arguments select the package defaults.
func NewReuser(maxDistance, maxReuse int) *Reuser {
	if maxDistance <= 0 {
		maxDistance = MaxHashDistance
	}
	if maxReuse <= 0 {
		maxReuse = MaxConsecutiveReuse
	}
	return &Reuser{maxDistance: maxDistance, maxReuse: maxReuse}
}

// Lookup returns the cached estimate when the JPEG frame is perceptually
// identical to the last inferred one. A nil estimate with ok=true means the
// cached result was "no face". On a miss the frame's hash is held until Store.
func (r *Reuser) Lookup(jpeg []byte) (est *attention.Estimate, ok bool) {
	r.pending = nil

	img, _, err := image.Decode(bytes.NewReader(jpeg))
	if err != nil {
		return nil, false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, false
	}
	r.pending = hash

	if r.refHash == nil || r.reused >= r.maxReuse {
		return nil, false
	}
	dist, err := r.refHash.Distance(hash)
	if err != nil || dist > r.maxDistance {
		return nil, false
	}

	slog.Debug("reusing estimate for similar frame", "distance", dist, "reused", r.reused+1)
	r.reused++
	r.pending = nil
	return r.estimate, true
}

// Store records a fresh estimate for the frame passed to the preceding Lookup miss.
func (r *Reuser) Store(est *attention.Estimate) {
	if r.pending == nil {
		return
	}
	r.refHash = r.pending
	r.estimate = est
	r.reused = 0
	r.pending = nil
}
