// Package provider adapts text-generation APIs to analysis.Provider.
//
// Adapters make exactly one attempt per Complete call: SDK retries are disabled
// because the circuit breaker in front of them owns failure handling. Failures
// are classified as analysis.ErrTransient or analysis.ErrPermanent.
package provider

import (
	"fmt"
	"strings"

	"grant-insight/internal/usecase/analysis"
)

const (
	NameClaude = "claude"
	NameOpenAI = "openai"
	NameNoOp   = "noop"

	defaultMaxTokens = 1024
)

// Config selects and configures an adapter.
type Config struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	// RateLimit is the sustained requests per second; zero disables pacing.
	RateLimit float64
	Burst     int
}

// New builds the adapter named by cfg.Name.
func New(cfg Config) (analysis.Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case NameClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key is required", NameClaude)
		}
		return NewClaude(cfg), nil
	case NameOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key is required", NameOpenAI)
		}
		return NewOpenAI(cfg), nil
	case NameNoOp, "":
		return NewNoOp(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Name)
}

func maxTokens(p analysis.Prompt) int64 {
	if p.MaxTokens > 0 {
		return int64(p.MaxTokens)
	}
	return defaultMaxTokens
}
