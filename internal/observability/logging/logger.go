package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"grant-insight/internal/handler/http/requestid"
)

// Format selects the handler output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures New.
type Options struct {
	Level  slog.Level
	Format Format
	Output io.Writer
	// Service is attached to every record when set.
	Service string
}

// OptionsFromEnv reads LOG_LEVEL (debug, info, warn, error) and LOG_FORMAT (json, text).
// Unknown values fall back to info and json.
func OptionsFromEnv(service string) Options {
	format := FormatJSON
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatText)) {
		format = FormatText
	}
	return Options{
		Level:   ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:  format,
		Output:  os.Stdout,
		Service: service,
	}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds a structured logger. Source locations are added at debug level.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(opts.Output, hopts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	return logger
}

// NewLogger builds a logger configured from the environment.
func NewLogger(service string) *slog.Logger {
	return New(OptionsFromEnv(service))
}

// WithRequestID returns logger annotated with the request ID carried by ctx, if any.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}

// EnsureRequestID returns ctx carrying a request id, generating a UUID when ctx
// has none. Work started outside an HTTP request still gets a correlation id.
func EnsureRequestID(ctx context.Context) context.Context {
	if requestid.FromContext(ctx) != "" {
		return ctx
	}
	return requestid.WithRequestID(ctx, uuid.NewString())
}

// WithFields returns logger with additional structured fields.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// FromContext retrieves the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const loggerContextKey contextKey = "logger"
