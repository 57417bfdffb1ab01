package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`
CREATE TABLE IF NOT EXISTS documents (
    id              BIGSERIAL PRIMARY KEY,
    organization_id BIGINT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    body            TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`
CREATE TABLE IF NOT EXISTS grants (
    id          BIGSERIAL PRIMARY KEY,
    title       TEXT NOT NULL,
    funder      TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    focus_areas JSONB,
    max_award   BIGINT NOT NULL DEFAULT 0,
    deadline    TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`
CREATE TABLE IF NOT EXISTS document_analyses (
    document_id   BIGINT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
    status        VARCHAR(16) NOT NULL CHECK (status IN ('completed', 'error')),
    result        JSONB,
    error_message TEXT,
    degraded      BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_grants_deadline ON grants(deadline)`,
	// ListPendingAnalysis filters on degraded completions
	`CREATE INDEX IF NOT EXISTS idx_document_analyses_degraded ON document_analyses(document_id) WHERE degraded = TRUE`,
}

// MigrateUp applies the schema. Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
