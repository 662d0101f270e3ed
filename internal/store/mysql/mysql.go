// Package mysql provides an alternative store backend for deployments that
// already run MySQL or MariaDB. Signatures are stored JSON-encoded since
// there is no native vector type.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/store"
)

// Store implements store.Store on top of MySQL/MariaDB.
type Store struct {
	db *sql.DB
}

// Open creates the connection pool, verifies it and ensures the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("MySQL DSN is required")
	}

	// parseTime is required to scan TIMESTAMP columns into time.Time.
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			identity_id  VARCHAR(255) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			signature    JSON NOT NULL,
			enrolled_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id          VARCHAR(36) PRIMARY KEY,
			identity_id VARCHAR(255),
			outcome     VARCHAR(32) NOT NULL,
			score       DOUBLE,
			latency_ms  BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_attempts_created_at (created_at),
			INDEX idx_attempts_identity (identity_id, outcome, created_at)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// GetAll retrieves every enrolled identity, decoding JSON signatures.
func (s *Store) GetAll(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, display_name, signature, enrolled_at
		FROM identities
		ORDER BY identity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		var id store.Identity
		var raw []byte
		if err := rows.Scan(&id.ID, &id.DisplayName, &raw, &id.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if err := json.Unmarshal(raw, &id.Signature); err != nil {
			return nil, fmt.Errorf("decode signature for %s: %w", id.ID, err)
		}
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
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Upsert inserts or replaces the signature for an identity.
func (s *Store) Upsert(ctx context.Context, id store.Identity) error {
	if id.ID == "" {
		return fmt.Errorf("upsert identity: empty id")
	}

	raw, err := json.Marshal(id.Signature)
	if err != nil {
		return fmt.Errorf("encode signature: %w", err)
	}

	query := `
		INSERT INTO identities (identity_id, display_name, signature)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			display_name = VALUES(display_name),
			signature = VALUES(signature),
			enrolled_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, id.ID, id.DisplayName, raw); err != nil {
		return fmt.Errorf("upsert identity %s: %w", id.ID, err)
	}
	return nil
}

// DeleteByIDPrefix removes identities whose ID starts with prefix.
func (s *Store) DeleteByIDPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("delete by prefix: empty prefix")
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM identities WHERE identity_id LIKE CONCAT(?, '%')", prefix)
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
		INSERT INTO attempts (id, identity_id, outcome, score, latency_ms)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, a.ID, identityID, string(a.Outcome), score, a.LatencyMS); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]store.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(identity_id, ''), outcome, score, latency_ms, created_at
		FROM attempts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
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

// HasMatchedToday reports whether the identity has a MATCHED attempt today.
func (s *Store) HasMatchedToday(ctx context.Context, identityID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attempts
			WHERE identity_id = ?
			  AND outcome = 'MATCHED'
			  AND DATE(created_at) = CURDATE()
		)
	`, identityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check matched today: %w", err)
	}
	return exists, nil
}

// CountMatchedToday returns the number of distinct identities matched today.
func (s *Store) CountMatchedToday(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT identity_id) FROM attempts
		WHERE outcome = 'MATCHED'
		  AND identity_id IS NOT NULL
		  AND DATE(created_at) = CURDATE()
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count matched today: %w", err)
	}
	return count, nil
}

// Stats summarizes the full attempt log.
func (s *Store) Stats(ctx context.Context) (store.LogStats, error) {
	var stats store.LogStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(outcome = 'MATCHED'), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM attempts
	`).Scan(&stats.TotalAttempts, &stats.MatchedAttempts, &stats.AvgLatencyMS)
	if err != nil {
		return store.LogStats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
