package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("invalid provider response")

	// ErrInvalidRequest is returned for requests rejected before any call is attempted.
	ErrInvalidRequest = errors.New("invalid analysis request")

	errNoFallback = errors.New("no fallback configured")
)

// ParseError reports a provider response that failed structural validation.
type ParseError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s response: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s response: %s", e.Kind, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// ErrorKind classifies a CallError.
type ErrorKind string

const (
	// ProviderUnavailable: the provider call failed and the fallback failed too.
	ProviderUnavailable ErrorKind = "provider_unavailable"
	// InvalidResponse: the provider answered with an unusable payload and the fallback failed too.
	InvalidResponse ErrorKind = "invalid_response"
)

// CallError is the only error the executor returns. It is scoped to one request.
type CallError struct {
	Kind        ErrorKind
	Operation   string
	Cause       error
	FallbackErr error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s: %v (fallback: %v)", e.Operation, e.Kind, e.Cause, e.FallbackErr)
}

// Unwrap exposes both the triggering failure and the fallback failure to errors.Is/As.
func (e *CallError) Unwrap() []error {
	return []error{e.Cause, e.FallbackErr}
}
