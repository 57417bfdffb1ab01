// Package circuitbreaker provides circuit breaker implementations for calls to unreliable dependencies.
// It uses the github.com/sony/gobreaker library for the state machine and adds a per-call
// timeout, last-failure tracking and an optional fallback for rejected calls.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// FailureThreshold is the number of consecutive failures that trips the circuit
	FailureThreshold uint32

	// ResetTimeout is how long to wait in open state before admitting trial calls
	ResetTimeout time.Duration

	// CallTimeout bounds every call made through the breaker; a timeout counts as a failure
	CallTimeout time.Duration

	// HalfOpenSuccesses is both the number of trial calls admitted in half-open state
	// and the number of consecutive successes required to close the circuit
	HalfOpenSuccesses uint32
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		CallTimeout:       20 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// ProviderConfig returns configuration for the remote text-generation provider.
// Generation calls are slow, so the call timeout is generous and the reset period
// gives a rate-limited provider time to recover.
func ProviderConfig(name string) Config {
	return Config{
		Name:              name,
		FailureThreshold:  5,
		ResetTimeout:      60 * time.Second,
		CallTimeout:       30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Validate checks that every numeric field is positive.
func (c Config) Validate() error {
	if c.FailureThreshold == 0 {
		return errors.New("failure threshold must be positive")
	}
	if c.ResetTimeout <= 0 {
		return errors.New("reset timeout must be positive")
	}
	if c.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	if c.HalfOpenSuccesses == 0 {
		return errors.New("half-open successes must be positive")
	}
	return nil
}

// withDefaults replaces zero values with DefaultConfig values.
func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Name)
	if c.Name == "" {
		c.Name = "default"
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.HalfOpenSuccesses == 0 {
		c.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	return c
}

// Operation is a call guarded by the breaker. The context carries the call deadline.
type Operation func(ctx context.Context) (interface{}, error)

// FallbackFunc answers a call rejected by an open circuit.
// err is always an *OpenError.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// Option configures optional CircuitBreaker behaviour.
type Option func(*CircuitBreaker)

// WithFallback installs a fallback invoked instead of returning an *OpenError.
func WithFallback(fn FallbackFunc) Option {
	return func(cb *CircuitBreaker) {
		cb.fallback = fn
	}
}

// WithLogger overrides the logger used for state change events.
func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) {
		if logger != nil {
			cb.logger = logger
		}
	}
}

// CircuitBreaker wraps gobreaker.TwoStepCircuitBreaker with additional functionality.
type CircuitBreaker struct {
	breaker  *gobreaker.TwoStepCircuitBreaker
	cfg      Config
	fallback FallbackFunc
	logger   *slog.Logger
	metrics  *breakerMetrics

	mu      sync.Mutex
	lastErr error
}

// New creates a new circuit breaker with the given configuration.
// Zero-valued fields fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *CircuitBreaker {
	cfg = cfg.withDefaults()

	cb := &CircuitBreaker{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: getBreakerMetrics(),
	}
	for _, opt := range opts {
		opt(cb)
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenSuccesses,
		// Interval 0 keeps closed-state counts until a success or a trip resets them.
		Interval: 0,
		Timeout:  cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			cb.metrics.recordTransition(name, from, to)
		},
	}

	cb.breaker = gobreaker.NewTwoStepCircuitBreaker(settings)
	cb.metrics.setState(cfg.Name, gobreaker.StateClosed)
	return cb
}

type outcome struct {
	value interface{}
	err   error
}

// Execute runs op through the circuit breaker.
// While the circuit is open (or the half-open trial budget is spent) op is not invoked:
// the configured fallback answers, or an *OpenError wrapping the last observed failure
// is returned. The breaker never retries.
//
// A call whose caller went away (ctx done) or that failed with ErrNotAttempted says
// nothing about the dependency: it is not counted in the closed state. A half-open
// trial must report an outcome to release its slot, so there it counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	done, err := cb.breaker.Allow()
	if err != nil {
		openErr := &OpenError{
			Circuit: cb.cfg.Name,
			State:   cb.breaker.State(),
			LastErr: cb.LastFailure(),
		}
		if cb.fallback != nil {
			return cb.fallback(ctx, openErr)
		}
		return nil, openErr
	}

	v, callErr := cb.call(ctx, op)
	switch {
	case callErr == nil:
		done(true)
		return v, nil
	case ctx.Err() != nil || errors.Is(callErr, ErrNotAttempted):
		if cb.breaker.State() == gobreaker.StateHalfOpen {
			done(false)
		}
		return nil, callErr
	default:
		cb.recordFailure(callErr)
		done(false)
		return nil, callErr
	}
}

// call races op against the configured call timeout.
// A timed-out op keeps running in its goroutine; its result is dropped.
func (cb *CircuitBreaker) call(ctx context.Context, op Operation) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("circuit %s: operation panicked: %v", cb.cfg.Name, r)}
			}
		}()
		v, err := op(callCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Circuit: cb.cfg.Name, After: cb.cfg.CallTimeout}
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	cb.lastErr = err
	cb.mu.Unlock()
}

// LastFailure returns the most recent error produced by a guarded call, or nil.
func (cb *CircuitBreaker) LastFailure() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastErr
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the breaker's internal counters for the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.cfg
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// Snapshot is a point-in-time view of a breaker for health reporting.
type Snapshot struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	FailureThreshold    uint32 `json:"failure_threshold"`
	LastError           string `json:"last_error,omitempty"`
}

// Snapshot returns the current breaker state for health endpoints.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	s := Snapshot{
		Name:                cb.cfg.Name,
		State:               cb.breaker.State().String(),
		ConsecutiveFailures: cb.breaker.Counts().ConsecutiveFailures,
		FailureThreshold:    cb.cfg.FailureThreshold,
	}
	if err := cb.LastFailure(); err != nil {
		s.LastError = err.Error()
	}
	return s
}
