package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/repository"
)

type GrantRepo struct{ db *sql.DB }

func NewGrantRepo(db *sql.DB) repository.GrantRepository {
	return &GrantRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanGrant scans a grant row including the focus_areas JSONB column.
func scanGrant(s rowScanner) (*entity.Grant, error) {
	var g entity.Grant
	var focusAreasJSON []byte
	if err := s.Scan(
		&g.ID, &g.Title, &g.Funder, &g.Description, &focusAreasJSON,
		&g.MaxAward, &g.Deadline, &g.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(focusAreasJSON) > 0 {
		if err := json.Unmarshal(focusAreasJSON, &g.FocusAreas); err != nil {
			return nil, fmt.Errorf("unmarshal focus_areas: %w", err)
		}
	}
	return &g, nil
}

func (repo *GrantRepo) Get(ctx context.Context, id int64) (*entity.Grant, error) {
	const query = `
SELECT id, title, funder, description, focus_areas, max_award, deadline, created_at
FROM grants
WHERE id = $1
LIMIT 1`
	g, err := scanGrant(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return g, nil
}

func (repo *GrantRepo) ListOpen(ctx context.Context, asOf time.Time, limit int) ([]*entity.Grant, error) {
	const query = `
SELECT id, title, funder, description, focus_areas, max_award, deadline, created_at
FROM grants
WHERE deadline IS NULL OR deadline >= $1
ORDER BY deadline ASC NULLS LAST, id ASC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("ListOpen: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grants := make([]*entity.Grant, 0, limit)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOpen: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
