package repository

import (
	"context"
	"time"

	"grant-insight/internal/domain/entity"
)

type GrantRepository interface {
	Get(ctx context.Context, id int64) (*entity.Grant, error)
	// ListOpen returns grants accepting applications at asOf, nearest deadline first.
	ListOpen(ctx context.Context, asOf time.Time, limit int) ([]*entity.Grant, error)
}
