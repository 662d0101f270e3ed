package store

import (
	"time"
)

// Outcome classifies how an identification attempt ended.
type Outcome string

const (
	OutcomeMatched         Outcome = "MATCHED"
	OutcomeNoMatch         Outcome = "NO_MATCH"
	OutcomeNoFace          Outcome = "NO_FACE"
	OutcomeMultiFace       Outcome = "MULTI_FACE"
	OutcomeLivenessFailed  Outcome = "LIVENESS_FAILED"
	OutcomeEmbeddingFailed Outcome = "EMBEDDING_FAILED"
)

// Outcomes lists every valid attempt outcome, in schema order.
var Outcomes = []Outcome{
	OutcomeMatched,
	OutcomeNoMatch,
	OutcomeNoFace,
	OutcomeMultiFace,
	OutcomeLivenessFailed,
	OutcomeEmbeddingFailed,
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// Identity is an enrolled subject. Each identity carries exactly one
// signature; enrollment overwrites, it never appends.
type Identity struct {
	ID          string
	DisplayName string
	Signature   []float32 // unit-normalized, dimension fixed at enrollment
	EnrolledAt  time.Time
}

// Attempt is one append-only row of the attendance log. A row is written
// exactly once per completed kiosk cycle and never mutated afterwards.
type Attempt struct {
	ID         string
	IdentityID string  // empty when no identity was involved
	Outcome    Outcome
	Score      *float64 // best cosine similarity; nil when never computed
	LatencyMS  int64
	CreatedAt  time.Time
}

// LogStats summarizes the attempt log.
type LogStats struct {
	TotalAttempts   int
	MatchedAttempts int
	AvgLatencyMS    float64
}

// MatchRate returns the fraction of attempts that matched, in percent.
func (s LogStats) MatchRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.MatchedAttempts) / float64(s.TotalAttempts) * 100
}
