package provider

import (
	"context"
	"errors"
	"fmt"

	"grant-insight/internal/resilience/retry"
	"grant-insight/internal/usecase/analysis"
)

// classify wraps err from provider name with the matching analysis sentinel.
// status is the HTTP status reported by the SDK, or zero when none was received.
func classify(name string, status int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status != 0 {
		if retry.IsRetryableStatus(status) {
			return fmt.Errorf("%s: %w: status %d: %v", name, analysis.ErrTransient, status, err)
		}
		return fmt.Errorf("%s: %w: status %d: %v", name, analysis.ErrPermanent, status, err)
	}
	// Network failures and undecodable responses.
	return fmt.Errorf("%s: %w: %v", name, analysis.ErrTransient, err)
}

// outcome is the metrics label for a classified error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, analysis.ErrPermanent):
		return "permanent"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "transient"
}
