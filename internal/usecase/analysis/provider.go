package analysis

import (
	"context"
	"errors"

	"grant-insight/internal/resilience/cache"
)

var (
	// ErrTransient marks provider failures that may succeed later: timeouts, 5xx, 429, network errors.
	ErrTransient = errors.New("transient provider failure")

	// ErrPermanent marks provider failures that will not succeed on retry: other 4xx, malformed requests.
	ErrPermanent = errors.New("permanent provider failure")
)

// Prompt is a single request to the text-generation provider.
type Prompt struct {
	Kind      cache.Kind
	System    string
	User      string
	MaxTokens int
}

// Provider is the remote text-generation dependency.
// Complete returns the raw completion text. Implementations wrap failures with
// ErrTransient or ErrPermanent.
type Provider interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	Name() string
}
