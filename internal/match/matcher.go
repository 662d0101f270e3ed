package match

import (
	"time"

	"github.com/kozaktomas/face-attend/internal/store"
)

// Result is the outcome of one 1:N comparison. Identity is nil when the
// best score stayed below the threshold; Best is reported either way.
type Result struct {
	Identity *store.Identity
	Best     float64
	Latency  time.Duration
}

// Matched reports whether an identity cleared the threshold.
func (r Result) Matched() bool {
	return r.Identity != nil
}

// Matcher compares a query signature against the whole gallery.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given acceptance threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match scans every candidate and returns the best one. Ties keep the
// first candidate encountered. An empty gallery yields Best 0 and no match.
func (m *Matcher) Match(query []float32, candidates []store.Identity) Result {
	start := time.Now()

	result := Result{}
	if len(candidates) == 0 {
		result.Latency = time.Since(start)
		return result
	}

	best := -1.0
	bestIdx := -1
	for i := range candidates {
		score := Similarity(query, candidates[i].Signature)
		if score > best {
			best = score
			bestIdx = i
		}
	}

	result.Best = best
	if best >= m.threshold && bestIdx >= 0 {
		result.Identity = &candidates[bestIdx]
	}
	result.Latency = time.Since(start)
	return result
}
