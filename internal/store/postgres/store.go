package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attend/internal/store"
)

// Store implements store.Store on top of a PostgreSQL pool with pgvector.
type Store struct {
	pool *Pool
}

// NewStore wraps an existing pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// GetAll retrieves every enrolled identity with its signature.
func (s *Store) GetAll(ctx context.Context) ([]store.Identity, error) {
	query := `
		SELECT identity_id, display_name, signature, enrolled_at
		FROM identities
		ORDER BY identity_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		var id store.Identity
		var vec pgvector.Vector
		if err := rows.Scan(&id.ID, &id.DisplayName, &vec, &id.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id.Signature = vec.Slice()
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Count returns the number of enrolled identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Upsert inserts or replaces the signature for an identity.
func (s *Store) Upsert(ctx context.Context, id store.Identity) error {
	if id.ID == "" {
		return fmt.Errorf("upsert identity: empty id")
	}

	query := `
		INSERT INTO identities (identity_id, display_name, signature, enrolled_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			signature = EXCLUDED.signature,
			enrolled_at = NOW()
	`

	vec := pgvector.NewVector(id.Signature)
	if _, err := s.pool.Exec(ctx, query, id.ID, id.DisplayName, vec); err != nil {
		return fmt.Errorf("upsert identity %s: %w", id.ID, err)
	}
	return nil
}

// DeleteByIDPrefix removes identities whose ID starts with prefix.
func (s *Store) DeleteByIDPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("delete by prefix: empty prefix")
	}

	result, err := s.pool.Exec(ctx, "DELETE FROM identities WHERE identity_id LIKE $1 || '%'", prefix)
	if err != nil {
		return 0, fmt.Errorf("delete identities by prefix: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

// Append records one attempt row.
func (s *Store) Append(ctx context.Context, a store.Attempt) error {
	if !a.Outcome.Valid() {
		return fmt.Errorf("append attempt: unknown outcome %q", a.Outcome)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	var identityID sql.NullString
	if a.IdentityID != "" {
		identityID = sql.NullString{String: a.IdentityID, Valid: true}
	}
	var score sql.NullFloat64
	if a.Score != nil {
		score = sql.NullFloat64{Float64: *a.Score, Valid: true}
	}

	query := `
		INSERT INTO attempts (id, identity_id, outcome, score, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`

	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}

	if _, err := s.pool.Exec(ctx, query, a.ID, identityID, string(a.Outcome), score, a.LatencyMS, createdAt); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]store.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, COALESCE(identity_id, ''), outcome, score, latency_ms, created_at
		FROM attempts
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []store.Attempt
	for rows.Next() {
		var a store.Attempt
		var score sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.IdentityID, &a.Outcome, &score, &a.LatencyMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if score.Valid {
			v := score.Float64
			a.Score = &v
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// HasMatchedToday reports whether the identity has a MATCHED attempt on the
// current calendar day. Presence is always derived from the log.
func (s *Store) HasMatchedToday(ctx context.Context, identityID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM attempts
			WHERE identity_id = $1
			  AND outcome = 'MATCHED'
			  AND created_at::date = CURRENT_DATE
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, identityID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check matched today: %w", err)
	}
	return exists, nil
}

// CountMatchedToday returns the number of distinct identities matched today.
func (s *Store) CountMatchedToday(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(DISTINCT identity_id) FROM attempts
		WHERE outcome = 'MATCHED'
		  AND identity_id IS NOT NULL
		  AND created_at::date = CURRENT_DATE
	`

	var count int
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count matched today: %w", err)
	}
	return count, nil
}

// Stats summarizes the full attempt log.
func (s *Store) Stats(ctx context.Context) (store.LogStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'MATCHED'),
			COALESCE(AVG(latency_ms), 0)
		FROM attempts
	`

	var stats store.LogStats
	if err := s.pool.QueryRow(ctx, query).Scan(&stats.TotalAttempts, &stats.MatchedAttempts, &stats.AvgLatencyMS); err != nil {
		return store.LogStats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
