package repository

import (
	"context"

	"grant-insight/internal/domain/entity"
)

// AnalysisRepository is the durable result store for document analyses.
// Get returns nil, nil when no record exists.
type AnalysisRepository interface {
	Get(ctx context.Context, subjectID int64) (*entity.AnalysisRecord, error)
	Upsert(ctx context.Context, record *entity.AnalysisRecord) error
}
