// Package retry re-attempts durable-store writes that fail for transient reasons.
//
// Provider calls are never wrapped here: they already run behind a circuit
// breaker, and an open breaker is reported as non-retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"grant-insight/internal/observability/logging"
	"grant-insight/internal/resilience/circuitbreaker"
)

// Config is a backoff policy.
type Config struct {
	MaxAttempts    int           // total attempts, the first one included
	InitialDelay   time.Duration // wait before the second attempt
	MaxDelay       time.Duration // cap for the un-jittered wait
	Multiplier     float64       // growth factor between waits
	JitterFraction float64       // 0..1 share of the wait added at random
}

// DBConfig is the policy for analysis record upserts: three quick attempts.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}
}

// Validate rejects policies that would never run or never wait.
func (c Config) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("retry: MaxAttempts must be at least 1, got %d", c.MaxAttempts)
	case c.MaxAttempts > 1 && c.InitialDelay <= 0:
		return errors.New("retry: InitialDelay must be positive when retrying")
	case c.MaxDelay < c.InitialDelay:
		return fmt.Errorf("retry: MaxDelay %s is below InitialDelay %s", c.MaxDelay, c.InitialDelay)
	case c.Multiplier < 1 && c.MaxAttempts > 1:
		return fmt.Errorf("retry: Multiplier must be >= 1, got %g", c.Multiplier)
	case c.JitterFraction < 0 || c.JitterFraction > 1:
		return fmt.Errorf("retry: JitterFraction must be within [0,1], got %g", c.JitterFraction)
	}
	return nil
}

// Delay returns the un-jittered wait after the given failed attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, fails with a non-retryable error, the attempts
// run out or ctx is done. op names the write in logs and metrics.
//
// A non-retryable error is returned unwrapped.
func Do(ctx context.Context, cfg Config, op string, fn func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	logger := logging.FromContext(ctx).With(slog.String("op", op))
	m := getRetryMetrics()

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				logger.InfoContext(ctx, "write succeeded after retry", slog.Int("attempt", attempt))
				m.outcome(op, "recovered")
			}
			return nil
		}
		if !IsRetryable(err) {
			m.outcome(op, "permanent")
			return err
		}
		if attempt >= cfg.MaxAttempts {
			m.outcome(op, "exhausted")
			return &ExhaustedError{Op: op, Attempts: attempt, Err: err}
		}

		wait := addJitter(cfg.Delay(attempt), cfg.JitterFraction)
		logger.WarnContext(ctx, "write failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		m.retries.WithLabelValues(op).Inc()

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			m.outcome(op, "canceled")
			return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), err)
		}
	}
}

// IsRetryable reports whether err is transient.
//
// Context errors and an open breaker are final. A breaker call timeout, network
// timeouts, refused or reset connections and the transient SQLSTATE classes are
// worth another attempt.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return false
	case errors.Is(err, circuitbreaker.ErrCallTimeout):
		return true
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLState(pgErr.Code)
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryableStatus reports whether an HTTP status is transient: 408, 429 or any 5xx.
func IsRetryableStatus(code int) bool {
	return code >= 500 && code < 600 ||
		code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout
}

// retryableSQLState: connection exceptions (08), operator intervention (57),
// serialization failure and deadlock.
func retryableSQLState(code string) bool {
	if strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57") {
		return true
	}
	return code == "40001" || code == "40P01"
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	fraction = min(fraction, 1)
	return d + time.Duration(rand.Float64()*fraction*float64(d))
}
