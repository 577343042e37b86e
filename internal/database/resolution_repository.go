package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/profitscan/profitscan/internal/domain"
)

// ResolutionRepository is the durable store behind the identifier cache.
// Rows are created on first lookup miss and updated forever after; the
// pipeline never deletes them.
type ResolutionRepository struct {
	db *sqlx.DB
}

// NewResolutionRepository creates a new resolution repository.
func NewResolutionRepository(db *sqlx.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// FetchAndTouch returns the stored records for the given codes and bumps
// each hit's lookup counter in the same statement. The increment happens in
// SQL, not read-modify-write, so concurrent lookups from different chunks
// never lose counts.
func (r *ResolutionRepository) FetchAndTouch(ctx context.Context, codes []string) (map[string]*domain.ResolutionRecord, error) {
	if len(codes) == 0 {
		return map[string]*domain.ResolutionRecord{}, nil
	}

	query := `
		UPDATE identifier_resolutions
		SET lookup_count = lookup_count + 1
		WHERE input_code = ANY($1)
		RETURNING input_code, resolved_code, status, candidates, resolved_at, lookup_count
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resolutions: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*domain.ResolutionRecord)
	for rows.Next() {
		var rec domain.ResolutionRecord
		var candidates pq.StringArray
		if err := rows.Scan(&rec.InputCode, &rec.ResolvedCode, &rec.Status, &candidates, &rec.ResolvedAt, &rec.LookupCount); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		rec.Candidates = candidates
		records[rec.InputCode] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read resolutions: %w", err)
	}

	return records, nil
}

// Upsert stores a resolution outcome. Concurrent upserts for the same code
// are idempotent: last write wins on resolved_code/status/candidates, and
// lookup_count is left alone so it stays monotonic under races.
func (r *ResolutionRepository) Upsert(ctx context.Context, rec *domain.ResolutionRecord) error {
	if rec.ResolvedAt.IsZero() {
		rec.ResolvedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO identifier_resolutions (input_code, resolved_code, status, candidates, resolved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (input_code) DO UPDATE
		SET resolved_code = EXCLUDED.resolved_code,
		    status        = EXCLUDED.status,
		    candidates    = EXCLUDED.candidates,
		    resolved_at   = EXCLUDED.resolved_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.InputCode, rec.ResolvedCode, rec.Status, pq.Array(rec.Candidates), rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resolution: %w", err)
	}

	return nil
}
