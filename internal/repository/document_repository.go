package repository

import (
	"context"

	"grant-insight/internal/domain/entity"
)

type DocumentRepository interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, id int64) (*entity.Document, error)
	// ListPendingAnalysis returns ids of documents without a settled analysis, oldest first.
	ListPendingAnalysis(ctx context.Context, limit int) ([]int64, error)
}
