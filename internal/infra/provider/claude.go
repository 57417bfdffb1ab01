package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"grant-insight/internal/observability/logging"
	"grant-insight/internal/usecase/analysis"
)

// DefaultClaudeModel is used when Config.Model is empty.
const DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude completes prompts with the Anthropic Messages API.
type Claude struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	metrics MetricsRecorder
}

func NewClaude(cfg Config) *Claude {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	return &Claude{
		client:  anthropic.NewClient(opts...),
		model:   model,
		limiter: newLimiter(cfg.RateLimit, cfg.Burst),
		metrics: NewPrometheusMetrics(),
	}
}

func (c *Claude) Name() string { return NameClaude }

// Complete sends p as a single user turn and returns the concatenated text blocks.
func (c *Claude) Complete(ctx context.Context, p analysis.Prompt) (string, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens(p),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		err = classify(NameClaude, status, err)
		c.metrics.RecordRequest(NameClaude, outcome(err), duration)
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		err := fmt.Errorf("%s: %w: response has no text content", NameClaude, analysis.ErrPermanent)
		c.metrics.RecordRequest(NameClaude, outcome(err), duration)
		return "", err
	}

	c.metrics.RecordRequest(NameClaude, outcome(nil), duration)
	logging.FromContext(ctx).DebugContext(ctx, "provider completion",
		slog.String("provider", NameClaude),
		slog.String("model", c.model),
		slog.Int64("output_tokens", msg.Usage.OutputTokens),
		slog.Duration("duration", duration))
	return b.String(), nil
}
