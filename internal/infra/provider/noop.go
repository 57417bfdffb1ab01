package provider

import (
	"context"
	"fmt"

	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/usecase/analysis"
)

// NoOp answers every prompt with a fixed, valid response. It is meant for
// local development without API credentials.
type NoOp struct{}

func NewNoOp() *NoOp { return &NoOp{} }

func (n *NoOp) Name() string { return NameNoOp }

func (n *NoOp) Complete(ctx context.Context, p analysis.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch p.Kind {
	case cache.KindDocument:
		return `{"summary":"Analysis is not configured in this environment.","topics":[],"score":0.5,"highlights":[]}`, nil
	case cache.KindRecommendation:
		return `{"recommendations":[]}`, nil
	case cache.KindAnswer:
		return `{"answer":"Answers are not configured in this environment.","grant_ids":[]}`, nil
	}
	return "", fmt.Errorf("%s: %w: unsupported prompt kind %q", NameNoOp, analysis.ErrPermanent, p.Kind)
}
