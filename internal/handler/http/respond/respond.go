// Package respond writes JSON responses and keeps internal error detail out of them.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"grant-insight/internal/handler/http/requestid"
	"grant-insight/internal/observability/logging"
)

const internalErrorMessage = "internal server error"

// JSON writes v as the response body with code. A nil v writes headers only.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encode response", slog.Int("status", code), slog.Any("error", err))
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// PublicError carries the status and message a client may see, plus the
// cause that stays in the logs.
type PublicError struct {
	Code    int
	Message string
	Cause   error
}

func (e *PublicError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *PublicError) Unwrap() error { return e.Cause }

// Public marks err as answered with code and msg.
func Public(code int, msg string, cause error) error {
	return &PublicError{Code: code, Message: msg, Cause: cause}
}

// validationHints mark messages that describe the caller's input rather than
// server state.
var validationHints = []string{
	"required",
	"invalid",
	"not found",
	"must be",
	"must not",
	"is empty",
	"exceeds",
}

// Error writes err without leaking internal detail, tagged with the request id.
//
// A *PublicError in the chain decides status and message. Otherwise a 4xx
// message is shown only when it reads like an input problem, and 5xx bodies
// are always generic. Whatever is hidden is logged with secrets masked,
// through the request-scoped logger.
func Error(w http.ResponseWriter, r *http.Request, code int, err error) {
	if err == nil {
		return
	}
	ctx := r.Context()
	body := ErrorBody{RequestID: requestid.FromContext(ctx)}
	logger := logging.FromContext(ctx)

	var pub *PublicError
	switch {
	case errors.As(err, &pub):
		code, body.Error = pub.Code, pub.Message
		if pub.Cause != nil && code >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "request failed",
				slog.Int("status", code),
				slog.String("error", SanitizeError(pub.Cause)))
		}
	case code < http.StatusInternalServerError && looksLikeInputError(err.Error()):
		body.Error = err.Error()
	default:
		body.Error = internalErrorMessage
		logger.ErrorContext(ctx, "request failed",
			slog.Int("status", code),
			slog.String("error", SanitizeError(err)))
	}
	JSON(w, code, body)
}

func looksLikeInputError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, hint := range validationHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
