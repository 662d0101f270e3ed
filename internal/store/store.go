// Package store defines the enrolled-signature and attendance-log contracts
// shared by the kiosk pipeline and its storage backends.
package store

import (
	"context"
)

// SignatureReader provides read access to enrolled signatures.
type SignatureReader interface {
	// GetAll returns every enrolled identity with its signature. The kiosk
	// reads the full set once per attempt; a concurrent enrollment write may
	// yield a stale snapshot for that single attempt.
	GetAll(ctx context.Context) ([]Identity, error)
	// Count returns the number of enrolled identities.
	Count(ctx context.Context) (int, error)
}

// SignatureWriter provides write access to enrolled signatures.
// Writing is owned by enrollment tooling, never by the kiosk pipeline.
type SignatureWriter interface {
	SignatureReader

	// Upsert inserts or replaces the signature for an identity.
	// An identity holds exactly one signature; replacement is total.
	Upsert(ctx context.Context, id Identity) error

	// DeleteByIDPrefix removes identities whose ID starts with prefix and
	// returns the number removed. Used to clear seeded test data.
	DeleteByIDPrefix(ctx context.Context, prefix string) (int64, error)
}

// AttendanceLog is the append-only attempt log. Daily presence is derived
// from MATCHED rows at read time; no separate presence flag is maintained.
type AttendanceLog interface {
	// Append records one attempt. Called exactly once per completed kiosk
	// cycle regardless of outcome.
	Append(ctx context.Context, a Attempt) error

	// Recent returns up to limit attempts, newest first.
	Recent(ctx context.Context, limit int) ([]Attempt, error)

	// HasMatchedToday reports whether the identity has at least one MATCHED
	// attempt on the current calendar day.
	HasMatchedToday(ctx context.Context, identityID string) (bool, error)

	// CountMatchedToday returns the number of distinct identities with a
	// MATCHED attempt on the current calendar day.
	CountMatchedToday(ctx context.Context) (int, error)

	// Stats summarizes the full attempt log.
	Stats(ctx context.Context) (LogStats, error)
}

// Store combines signatures and the attendance log behind one backend.
type Store interface {
	SignatureWriter
	AttendanceLog

	Close() error
}
