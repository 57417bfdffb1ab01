// Package postgres implements the repository interfaces on PostgreSQL via database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/repository"
)

type DocumentRepo struct{ db *sql.DB }

func NewDocumentRepo(db *sql.DB) repository.DocumentRepository {
	return &DocumentRepo{db: db}
}

func (repo *DocumentRepo) Get(ctx context.Context, id int64) (*entity.Document, error) {
	const query = `
SELECT id, organization_id, title, body, created_at
FROM documents
WHERE id = $1
LIMIT 1`
	var doc entity.Document
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.OrganizationID, &doc.Title, &doc.Body, &doc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &doc, nil
}

// ListPendingAnalysis skips documents whose last analysis ended in an error record;
// those are only picked up again through an explicit enqueue.
func (repo *DocumentRepo) ListPendingAnalysis(ctx context.Context, limit int) ([]int64, error) {
	const query = `
SELECT d.id
FROM documents d
LEFT JOIN document_analyses a ON a.document_id = d.id
WHERE a.document_id IS NULL
   OR (a.status = 'completed' AND a.degraded = TRUE)
ORDER BY d.id ASC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListPendingAnalysis: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListPendingAnalysis: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
