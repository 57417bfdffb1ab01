package entity

import "time"

// Grant is a fundable opportunity.
type Grant struct {
	ID          int64
	Title       string
	Funder      string
	Description string
	FocusAreas  []string
	MaxAward    int64
	// Deadline is nil for rolling opportunities.
	Deadline  *time.Time
	CreatedAt time.Time
}

// OpenAt reports whether applications are accepted at t.
func (g *Grant) OpenAt(t time.Time) bool {
	return g.Deadline == nil || !t.After(*g.Deadline)
}

// Organization is the applicant profile a recommendation is computed for.
type Organization struct {
	Name         string   `json:"name"`
	Mission      string   `json:"mission"`
	FocusAreas   []string `json:"focus_areas"`
	Location     string   `json:"location,omitempty"`
	AnnualBudget int64    `json:"annual_budget,omitempty"`
}

// Validate checks that the profile carries enough to match against.
func (o *Organization) Validate() error {
	if o.Mission == "" && len(o.FocusAreas) == 0 {
		return &ValidationError{Field: "organization", Message: "mission or focus_areas is required"}
	}
	return nil
}
