package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/utils/text"
)

const recommendSystemPrompt = `You match nonprofit organizations to grant opportunities.
Only recommend grants from the candidate list, by their id.
Respond with a single JSON object and nothing else:
{"recommendations": [{"grant_id": number, "score": number between 0 and 1, "reason": string}]}`

// RecommendRequest asks for the best grants among Candidates.
type RecommendRequest struct {
	Organization entity.Organization
	Candidates   []*entity.Grant
	Limit        int
}

// recommendKey leaves out the organization name: it does not change which grants fit.
type recommendKey struct {
	Mission      string   `json:"mission"`
	FocusAreas   []string `json:"focus_areas"`
	Location     string   `json:"location"`
	AnnualBudget int64    `json:"annual_budget"`
	GrantIDs     []int64  `json:"grant_ids"`
	Limit        int      `json:"limit"`
}

type recommendItem struct {
	GrantID int64   `json:"grant_id"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// recommendResponse distinguishes an absent key (nil) from an empty list.
type recommendResponse struct {
	Recommendations *[]recommendItem `json:"recommendations"`
}

type promptGrant struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Funder      string   `json:"funder"`
	Description string   `json:"description"`
	FocusAreas  []string `json:"focus_areas"`
	MaxAward    int64    `json:"max_award"`
	Deadline    string   `json:"deadline,omitempty"`
}

// RecommendOperation ranks open grants for an organization profile.
func RecommendOperation(ttl time.Duration, now func() time.Time) Operation[RecommendRequest, entity.RecommendationSet] {
	return Operation[RecommendRequest, entity.RecommendationSet]{
		Kind: cache.KindRecommendation,
		TTL:  ttl,
		KeyFields: func(req RecommendRequest) any {
			return recommendKey{
				Mission:      text.Normalize(req.Organization.Mission),
				FocusAreas:   normalizedSet(req.Organization.FocusAreas),
				Location:     text.Normalize(req.Organization.Location),
				AnnualBudget: req.Organization.AnnualBudget,
				GrantIDs:     grantIDs(req.Candidates),
				Limit:        req.Limit,
			}
		},
		Prompt: func(req RecommendRequest) Prompt {
			profile, _ := json.Marshal(struct {
				Mission      string   `json:"mission"`
				FocusAreas   []string `json:"focus_areas"`
				Location     string   `json:"location,omitempty"`
				AnnualBudget int64    `json:"annual_budget,omitempty"`
			}{req.Organization.Mission, req.Organization.FocusAreas, req.Organization.Location, req.Organization.AnnualBudget})
			candidates, _ := json.Marshal(promptGrants(req.Candidates))
			return Prompt{
				Kind:   cache.KindRecommendation,
				System: recommendSystemPrompt,
				User: fmt.Sprintf("Organization profile:\n%s\n\nCandidate grants:\n%s\n\nReturn at most %d recommendations.",
					profile, candidates, req.Limit),
				MaxTokens: 1024,
			}
		},
		Parse: func(raw string, req RecommendRequest) (entity.RecommendationSet, error) {
			return parseRecommendResponse(raw, req, now())
		},
		Fallback: func(_ context.Context, req RecommendRequest) (entity.RecommendationSet, error) {
			return heuristicRecommendations(req, now()), nil
		},
	}
}

func parseRecommendResponse(raw string, req RecommendRequest, at time.Time) (entity.RecommendationSet, error) {
	const kind = string(cache.KindRecommendation)

	var resp recommendResponse
	if err := decodeJSON(kind, raw, &resp); err != nil {
		return entity.RecommendationSet{}, err
	}
	if resp.Recommendations == nil {
		return entity.RecommendationSet{}, &ParseError{Kind: kind, Reason: "missing recommendations"}
	}
	recs := *resp.Recommendations

	byID := grantsByID(req.Candidates)
	items := make([]entity.Recommendation, 0, len(recs))
	seen := make(map[int64]struct{})
	for _, r := range recs {
		g, ok := byID[r.GrantID]
		if !ok {
			continue
		}
		if _, dup := seen[r.GrantID]; dup {
			continue
		}
		score, err := normalizeScore(kind, r.Score)
		if err != nil {
			return entity.RecommendationSet{}, err
		}
		seen[r.GrantID] = struct{}{}
		items = append(items, entity.Recommendation{
			GrantID: g.ID,
			Title:   g.Title,
			Score:   score,
			Reason:  strings.TrimSpace(r.Reason),
		})
	}
	if len(items) == 0 && len(recs) > 0 {
		return entity.RecommendationSet{}, &ParseError{Kind: kind, Reason: "no recommendation references a candidate grant"}
	}

	sortRecommendations(items)
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return entity.RecommendationSet{Items: items, GeneratedAt: at}, nil
}

// heuristicRecommendations scores each candidate by focus-area overlap and by how
// many mission terms appear in the grant text.
func heuristicRecommendations(req RecommendRequest, at time.Time) entity.RecommendationSet {
	orgAreas := normalizedSet(req.Organization.FocusAreas)

	items := make([]entity.Recommendation, 0, len(req.Candidates))
	for _, g := range req.Candidates {
		grantAreas := make(map[string]struct{}, len(g.FocusAreas))
		for _, a := range g.FocusAreas {
			grantAreas[text.Normalize(a)] = struct{}{}
		}
		var shared []string
		for _, a := range orgAreas {
			if _, ok := grantAreas[a]; ok {
				shared = append(shared, a)
			}
		}

		var areaScore float64
		if len(orgAreas) > 0 {
			areaScore = float64(len(shared)) / float64(len(orgAreas))
		}
		missionScore := text.Overlap(req.Organization.Mission, grantText(g))
		score := round2(0.6*areaScore + 0.4*missionScore)
		if score == 0 {
			continue
		}

		reason := "Mission overlaps the grant description"
		if len(shared) > 0 {
			reason = "Matches focus areas: " + strings.Join(shared, ", ")
		}
		items = append(items, entity.Recommendation{GrantID: g.ID, Title: g.Title, Score: score, Reason: reason})
	}

	sortRecommendations(items)
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return entity.RecommendationSet{Items: items, GeneratedAt: at}
}

func sortRecommendations(items []entity.Recommendation) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].GrantID < items[j].GrantID
	})
}

func grantText(g *entity.Grant) string {
	return g.Title + " " + g.Description + " " + strings.Join(g.FocusAreas, " ")
}

func grantIDs(grants []*entity.Grant) []int64 {
	ids := make([]int64, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func grantsByID(grants []*entity.Grant) map[int64]*entity.Grant {
	m := make(map[int64]*entity.Grant, len(grants))
	for _, g := range grants {
		m[g.ID] = g
	}
	return m
}

func promptGrants(grants []*entity.Grant) []promptGrant {
	out := make([]promptGrant, 0, len(grants))
	for _, g := range grants {
		pg := promptGrant{
			ID: g.ID, Title: g.Title, Funder: g.Funder,
			Description: text.Truncate(g.Description, 500),
			FocusAreas:  g.FocusAreas, MaxAward: g.MaxAward,
		}
		if g.Deadline != nil {
			pg.Deadline = g.Deadline.Format("2006-01-02")
		}
		out = append(out, pg)
	}
	return out
}

// normalizedSet lowercases, dedupes and sorts items.
func normalizedSet(items []string) []string {
	out := cleanList(items, len(items), true)
	for i := range out {
		out[i] = text.Normalize(out[i])
	}
	sort.Strings(out)
	return out
}
