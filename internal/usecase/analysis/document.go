package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/utils/text"
)

const (
	maxDocumentPromptRunes = 12000
	maxSummaryRunes        = 600
	maxTopics              = 8
	maxHighlights          = 5
)

const documentSystemPrompt = `You review grant application documents.
Respond with a single JSON object and nothing else:
{"summary": string, "topics": [string], "score": number between 0 and 1, "highlights": [string]}
"score" rates how complete and fundable the application is. "highlights" lists its strongest points.`

type documentKey struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type documentResponse struct {
	Summary    string   `json:"summary"`
	Topics     []string `json:"topics"`
	Score      *float64 `json:"score"`
	Highlights []string `json:"highlights"`
}

// DocumentOperation analyzes an uploaded document.
func DocumentOperation(ttl time.Duration, now func() time.Time) Operation[*entity.Document, entity.AnalysisResult] {
	return Operation[*entity.Document, entity.AnalysisResult]{
		Kind: cache.KindDocument,
		TTL:  ttl,
		KeyFields: func(doc *entity.Document) any {
			return documentKey{ID: doc.ID, Title: doc.Title, Body: doc.Body}
		},
		Prompt: func(doc *entity.Document) Prompt {
			body := doc.Body
			if text.CountRunes(body) > maxDocumentPromptRunes {
				body = text.Truncate(body, maxDocumentPromptRunes)
			}
			return Prompt{
				Kind:      cache.KindDocument,
				System:    documentSystemPrompt,
				User:      fmt.Sprintf("Title: %s\n\n%s", doc.Title, body),
				MaxTokens: 1024,
			}
		},
		Parse: func(raw string, _ *entity.Document) (entity.AnalysisResult, error) {
			return parseDocumentResponse(raw, now())
		},
		Fallback: func(_ context.Context, doc *entity.Document) (entity.AnalysisResult, error) {
			return heuristicDocumentAnalysis(doc, now())
		},
	}
}

func parseDocumentResponse(raw string, at time.Time) (entity.AnalysisResult, error) {
	const kind = string(cache.KindDocument)

	var resp documentResponse
	if err := decodeJSON(kind, raw, &resp); err != nil {
		return entity.AnalysisResult{}, err
	}
	summary := strings.TrimSpace(resp.Summary)
	if summary == "" {
		return entity.AnalysisResult{}, &ParseError{Kind: kind, Reason: "missing summary"}
	}
	if resp.Score == nil {
		return entity.AnalysisResult{}, &ParseError{Kind: kind, Reason: "missing score"}
	}
	score, err := normalizeScore(kind, *resp.Score)
	if err != nil {
		return entity.AnalysisResult{}, err
	}

	return entity.AnalysisResult{
		Summary:     text.Truncate(summary, maxSummaryRunes),
		Topics:      cleanList(resp.Topics, maxTopics, true),
		Score:       score,
		Highlights:  cleanList(resp.Highlights, maxHighlights, false),
		GeneratedAt: at,
	}, nil
}

// proposalSections are the parts reviewers expect in an application, with the
// terms that indicate each one is present.
var proposalSections = []struct {
	name  string
	terms []string
}{
	{"need statement", []string{"need", "problem", "challenge", "gap"}},
	{"goals", []string{"goal", "goals", "objective", "objectives", "outcome", "outcomes"}},
	{"budget", []string{"budget", "cost", "costs", "funding", "expenses"}},
	{"timeline", []string{"timeline", "schedule", "month", "months", "phase", "milestone", "milestones"}},
	{"evaluation", []string{"evaluation", "evaluate", "measure", "metrics", "indicators"}},
	{"sustainability", []string{"sustainability", "sustain", "sustainable", "continuation"}},
}

// heuristicDocumentAnalysis scores a document by which proposal sections it covers
// and summarizes it with its lead sentences.
func heuristicDocumentAnalysis(doc *entity.Document, at time.Time) (entity.AnalysisResult, error) {
	if doc == nil || strings.TrimSpace(doc.Body) == "" {
		return entity.AnalysisResult{}, fmt.Errorf("%w: document has no body", ErrInvalidRequest)
	}

	tokens := make(map[string]struct{})
	for _, t := range text.Tokenize(doc.Body) {
		tokens[t] = struct{}{}
	}

	var covered, missing []string
	for _, sec := range proposalSections {
		found := false
		for _, term := range sec.terms {
			if _, ok := tokens[term]; ok {
				found = true
				break
			}
		}
		if found {
			covered = append(covered, sec.name)
		} else {
			missing = append(missing, sec.name)
		}
	}

	sentences := text.Sentences(doc.Body)
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}

	var highlights []string
	if len(covered) > 0 {
		highlights = append(highlights, "Covers: "+strings.Join(covered, ", "))
	}
	if len(missing) > 0 {
		highlights = append(highlights, "Missing: "+strings.Join(missing, ", "))
	}

	return entity.AnalysisResult{
		Summary:     text.Truncate(strings.Join(sentences, " "), maxSummaryRunes),
		Topics:      text.Keywords(doc.Title+" "+doc.Body, 5),
		Score:       round2(float64(len(covered)) / float64(len(proposalSections))),
		Highlights:  highlights,
		GeneratedAt: at,
	}, nil
}
