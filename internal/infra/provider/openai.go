package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"grant-insight/internal/observability/logging"
	"grant-insight/internal/usecase/analysis"
)

// DefaultOpenAIModel is used when Config.Model is empty.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI completes prompts with the Chat Completions API in JSON mode.
type OpenAI struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	metrics MetricsRecorder
}

func NewOpenAI(cfg Config) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		limiter: newLimiter(cfg.RateLimit, cfg.Burst),
		metrics: NewPrometheusMetrics(),
	}
}

func (o *OpenAI) Name() string { return NameOpenAI }

func (o *OpenAI) Complete(ctx context.Context, p analysis.Prompt) (string, error) {
	if err := wait(ctx, o.limiter); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: int(maxTokens(p)),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)

	if err != nil {
		err = classify(NameOpenAI, openAIStatus(err), err)
		o.metrics.RecordRequest(NameOpenAI, outcome(err), duration)
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		err := fmt.Errorf("%s: %w: response has no choices", NameOpenAI, analysis.ErrPermanent)
		o.metrics.RecordRequest(NameOpenAI, outcome(err), duration)
		return "", err
	}

	o.metrics.RecordRequest(NameOpenAI, outcome(nil), duration)
	logging.FromContext(ctx).DebugContext(ctx, "provider completion",
		slog.String("provider", NameOpenAI),
		slog.String("model", o.model),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("duration", duration))
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
