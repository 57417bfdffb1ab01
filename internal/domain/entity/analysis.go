package entity

import "time"

// ResultSource tells where a result came from.
type ResultSource string

const (
	SourceProvider ResultSource = "provider"
	SourceCache    ResultSource = "cache"
	SourceFallback ResultSource = "fallback"
	SourceStore    ResultSource = "store"
)

// AnalysisResult is the structured analysis of a document. It is treated as an immutable value.
type AnalysisResult struct {
	Summary     string       `json:"summary"`
	Topics      []string     `json:"topics"`
	Score       float64      `json:"score"`
	Highlights  []string     `json:"highlights,omitempty"`
	Degraded    bool         `json:"degraded"`
	Source      ResultSource `json:"source,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// AnalysisStatus is the durable outcome of processing a document.
type AnalysisStatus string

const (
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisError     AnalysisStatus = "error"
)

// AnalysisRecord is the durable row for one document.
type AnalysisRecord struct {
	SubjectID    int64
	Status       AnalysisStatus
	Result       *AnalysisResult
	ErrorMessage string
	Degraded     bool
	UpdatedAt    time.Time
}

// Settled reports whether the record makes further processing unnecessary.
// Degraded results are kept but do not settle the subject.
func (r *AnalysisRecord) Settled() bool {
	return r != nil && r.Status == AnalysisCompleted && !r.Degraded && r.Result != nil
}

// Recommendation is one grant suggested for an organization.
type Recommendation struct {
	GrantID int64   `json:"grant_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// RecommendationSet is the result of a recommendation request.
type RecommendationSet struct {
	Items       []Recommendation `json:"items"`
	Degraded    bool             `json:"degraded"`
	Source      ResultSource     `json:"source,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Answer is a conversational answer about available grants.
type Answer struct {
	Text        string       `json:"text"`
	GrantIDs    []int64      `json:"grant_ids,omitempty"`
	Degraded    bool         `json:"degraded"`
	Source      ResultSource `json:"source,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}
