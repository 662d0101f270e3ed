// Package memory provides an in-memory store implementation. It backs unit
// tests and the demo mode used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attend/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu         sync.RWMutex
	identities map[string]store.Identity
	attempts   []store.Attempt

	// Now is the clock used for same-day derivations. Overridable in tests.
	Now func() time.Time

	// Error injection for tests.
	GetAllError error
	AppendError error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		identities: make(map[string]store.Identity),
		Now:        time.Now,
	}
}

// GetAll returns every enrolled identity, ordered by ID for determinism.
func (s *Store) GetAll(ctx context.Context) ([]store.Identity, error) {
	if s.GetAllError != nil {
		return nil, s.GetAllError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of enrolled identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// Upsert inserts or replaces the signature for an identity. The enrollment
// time is refreshed unless the caller supplied one, matching the SQL
// backends.
func (s *Store) Upsert(ctx context.Context, id store.Identity) error {
	if id.ID == "" {
		return fmt.Errorf("upsert identity: empty id")
	}
	if id.EnrolledAt.IsZero() {
		id.EnrolledAt = s.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.ID] = id
	return nil
}

// DeleteByIDPrefix removes identities whose ID starts with prefix.
func (s *Store) DeleteByIDPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("delete by prefix: empty prefix")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id := range s.identities {
		if strings.HasPrefix(id, prefix) {
			delete(s.identities, id)
			removed++
		}
	}
	return removed, nil
}

// Append records one attempt. Rows are never mutated afterwards.
func (s *Store) Append(ctx context.Context, a store.Attempt) error {
	if s.AppendError != nil {
		return s.AppendError
	}
	if !a.Outcome.Valid() {
		return fmt.Errorf("append attempt: unknown outcome %q", a.Outcome)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

// Recent returns up to limit attempts, newest first. A non-positive limit
// defaults to 50, same as the SQL backends.
func (s *Store) Recent(ctx context.Context, limit int) ([]store.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.attempts)
	if limit <= 0 {
		limit = 50
	}
	if limit > n {
		limit = n
	}
	out := make([]store.Attempt, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.attempts[i])
	}
	return out, nil
}

// HasMatchedToday reports whether the identity has a MATCHED attempt on the
// current calendar day. Derived from the log on every call.
func (s *Store) HasMatchedToday(ctx context.Context, identityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.Now()
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if a.IdentityID == identityID && a.Outcome == store.OutcomeMatched && sameDay(a.CreatedAt, today) {
			return true, nil
		}
	}
	return false, nil
}

// CountMatchedToday returns the number of distinct identities with a MATCHED
// attempt on the current calendar day.
func (s *Store) CountMatchedToday(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.Now()
	seen := make(map[string]struct{})
	for _, a := range s.attempts {
		if a.Outcome == store.OutcomeMatched && a.IdentityID != "" && sameDay(a.CreatedAt, today) {
			seen[a.IdentityID] = struct{}{}
		}
	}
	return len(seen), nil
}

// Stats summarizes the full attempt log.
func (s *Store) Stats(ctx context.Context) (store.LogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.LogStats{TotalAttempts: len(s.attempts)}
	var totalLatency int64
	for _, a := range s.attempts {
		if a.Outcome == store.OutcomeMatched {
			stats.MatchedAttempts++
		}
		totalLatency += a.LatencyMS
	}
	if stats.TotalAttempts > 0 {
		stats.AvgLatencyMS = float64(totalLatency) / float64(stats.TotalAttempts)
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
