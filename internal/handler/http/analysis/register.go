package analysis

import (
	"context"
	"log/slog"
	"net/http"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/usecase/queue"
)

// Queue is the part of the background processor the handlers use.
// *queue.Processor satisfies it.
type Queue interface {
	Enqueue(subjectID int64) queue.EnqueueResult
	StatusOf(ctx context.Context, subjectID int64) (queue.StatusResult, error)
}

// Service runs the synchronous operations. *analysis.Service satisfies it.
type Service interface {
	Recommend(ctx context.Context, org entity.Organization, limit int) (entity.RecommendationSet, error)
	Ask(ctx context.Context, question string) (entity.Answer, error)
}

// Register mounts the analysis routes on mux.
func Register(mux *http.ServeMux, q Queue, svc Service, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mux.Handle("POST /analyses/{id}", EnqueueHandler{Queue: q, Logger: logger})
	mux.Handle("GET /analyses/{id}", StatusHandler{Queue: q})
	mux.Handle("POST /recommendations", RecommendHandler{Svc: svc})
	mux.Handle("POST /questions", AskHandler{Svc: svc})
}
