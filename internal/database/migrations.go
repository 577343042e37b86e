package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the DDL for the analyzer's three tables. Statements are
// idempotent so startup can run them unconditionally.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id               TEXT PRIMARY KEY,
		total_items      INTEGER NOT NULL,
		chunk_count      INTEGER NOT NULL,
		status           TEXT NOT NULL DEFAULT 'queued',
		processed_count  BIGINT NOT NULL DEFAULT 0,
		success_count    BIGINT NOT NULL DEFAULT 0,
		error_count      BIGINT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at     TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS analysis_items (
		id               BIGSERIAL PRIMARY KEY,
		job_id           TEXT NOT NULL REFERENCES jobs(id),
		chunk_id         INTEGER NOT NULL,
		position         INTEGER NOT NULL,
		identifier       TEXT NOT NULL,
		kind             TEXT NOT NULL,
		catalog_code     TEXT NOT NULL DEFAULT '',
		acquisition_cost DOUBLE PRECISION NOT NULL,
		stage1_score     INTEGER,
		passed_stage1    BOOLEAN NOT NULL DEFAULT FALSE,
		final_score      INTEGER,
		classification   TEXT NOT NULL,
		error_reason     TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_analysis_items_job ON analysis_items(job_id)`,

	`CREATE TABLE IF NOT EXISTS identifier_resolutions (
		input_code    TEXT PRIMARY KEY,
		resolved_code TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		candidates    TEXT[] NOT NULL DEFAULT '{}',
		resolved_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		lookup_count  BIGINT NOT NULL DEFAULT 1
	)`,
}

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
