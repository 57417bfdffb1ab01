// Package analysis provides the HTTP handlers for document analyses,
// grant recommendations and questions.
package analysis

import (
	"grant-insight/internal/domain/entity"
	"grant-insight/internal/usecase/queue"
)

// EnqueueDTO is returned by POST /analyses/{id}.
type EnqueueDTO struct {
	SubjectID int64        `json:"subject_id" example:"42"`
	Queued    bool         `json:"queued" example:"true"`
	Status    queue.Status `json:"status" example:"queued"`
}

// StatusDTO is returned by GET /analyses/{id}.
type StatusDTO struct {
	SubjectID int64                  `json:"subject_id" example:"42"`
	Processed bool                   `json:"processed" example:"true"`
	Status    queue.Status           `json:"status" example:"completed"`
	Result    *entity.AnalysisResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// RecommendRequest is the body of POST /recommendations.
type RecommendRequest struct {
	Organization entity.Organization `json:"organization"`
	// Limit defaults to 5 and is capped at 20.
	Limit int `json:"limit,omitempty" example:"5"`
}

// AskRequest is the body of POST /questions.
type AskRequest struct {
	Question string `json:"question" example:"Which grants fund rural broadband?"`
}
