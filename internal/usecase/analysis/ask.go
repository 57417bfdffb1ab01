package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/utils/text"
)

const (
	maxQuestionRunes  = 1000
	maxFallbackGrants = 3
)

const askSystemPrompt = `You answer questions about the grant opportunities listed by the user.
Base the answer only on those grants.
Respond with a single JSON object and nothing else:
{"answer": string, "grant_ids": [number]}`

// AskRequest is a free-form question answered from Candidates.
type AskRequest struct {
	Question   string
	Candidates []*entity.Grant
}

type askKey struct {
	Question string  `json:"question"`
	GrantIDs []int64 `json:"grant_ids"`
}

type askResponse struct {
	Answer   string  `json:"answer"`
	GrantIDs []int64 `json:"grant_ids"`
}

// AskOperation answers a question about the open grants.
func AskOperation(ttl time.Duration, now func() time.Time) Operation[AskRequest, entity.Answer] {
	return Operation[AskRequest, entity.Answer]{
		Kind: cache.KindAnswer,
		TTL:  ttl,
		KeyFields: func(req AskRequest) any {
			return askKey{Question: text.Normalize(req.Question), GrantIDs: grantIDs(req.Candidates)}
		},
		Prompt: func(req AskRequest) Prompt {
			var b strings.Builder
			for _, pg := range promptGrants(req.Candidates) {
				fmt.Fprintf(&b, "- id=%d %q by %s, focus: %s, max award: %d", pg.ID, pg.Title, pg.Funder,
					strings.Join(pg.FocusAreas, ", "), pg.MaxAward)
				if pg.Deadline != "" {
					fmt.Fprintf(&b, ", deadline: %s", pg.Deadline)
				}
				fmt.Fprintf(&b, "\n  %s\n", pg.Description)
			}
			return Prompt{
				Kind:      cache.KindAnswer,
				System:    askSystemPrompt,
				User:      fmt.Sprintf("Grants:\n%s\nQuestion: %s", b.String(), req.Question),
				MaxTokens: 768,
			}
		},
		Parse: func(raw string, req AskRequest) (entity.Answer, error) {
			return parseAskResponse(raw, req, now())
		},
		Fallback: func(_ context.Context, req AskRequest) (entity.Answer, error) {
			return heuristicAnswer(req, now()), nil
		},
	}
}

func parseAskResponse(raw string, req AskRequest, at time.Time) (entity.Answer, error) {
	const kind = string(cache.KindAnswer)

	var resp askResponse
	if err := decodeJSON(kind, raw, &resp); err != nil {
		return entity.Answer{}, err
	}
	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		return entity.Answer{}, &ParseError{Kind: kind, Reason: "missing answer"}
	}

	byID := grantsByID(req.Candidates)
	var ids []int64
	for _, id := range resp.GrantIDs {
		if _, ok := byID[id]; ok {
			ids = append(ids, id)
		}
	}
	return entity.Answer{Text: answer, GrantIDs: ids, GeneratedAt: at}, nil
}

// heuristicAnswer lists the candidates whose text shares the most terms with the question.
func heuristicAnswer(req AskRequest, at time.Time) entity.Answer {
	type scored struct {
		g     *entity.Grant
		score float64
	}
	var matches []scored
	for _, g := range req.Candidates {
		if s := text.Overlap(req.Question, grantText(g)+" "+g.Funder); s > 0 {
			matches = append(matches, scored{g, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].g.ID < matches[j].g.ID
	})
	if len(matches) > maxFallbackGrants {
		matches = matches[:maxFallbackGrants]
	}

	if len(matches) == 0 {
		return entity.Answer{
			Text:        "No open grants matched your question. Detailed answers are temporarily unavailable; please try again later.",
			GeneratedAt: at,
		}
	}

	parts := make([]string, 0, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		desc := fmt.Sprintf("%s (%s", m.g.Title, m.g.Funder)
		if m.g.Deadline != nil {
			desc += ", deadline " + m.g.Deadline.Format("2006-01-02")
		}
		parts = append(parts, desc+")")
		ids = append(ids, m.g.ID)
	}
	return entity.Answer{
		Text:        "These open grants look relevant: " + strings.Join(parts, "; ") + ".",
		GrantIDs:    ids,
		GeneratedAt: at,
	}
}
