// Package frames detects near-duplicate camera frames so the last estimate can be reused
package frames

const (
	// MaxHashDistance is the largest pHash Hamming distance treated as "same frame".
	MaxHashDistance = 4

	// MaxConsecutiveReuse bounds how long a cached estimate may stand in for fresh inference.
	MaxConsecutiveReuse = 5
)
