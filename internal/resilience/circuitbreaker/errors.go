package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen matches every *OpenError.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrCallTimeout matches every *TimeoutError.
	ErrCallTimeout = errors.New("call timed out")

	// ErrNotAttempted marks an operation error raised before the dependency was
	// reached, such as a local rate limit wait. Such errors are not counted.
	ErrNotAttempted = errors.New("call not attempted")
)

// OpenError is returned when a call is rejected without being attempted.
type OpenError struct {
	Circuit string
	State   gobreaker.State
	// LastErr is the most recent failure observed before the rejection, if any.
	LastErr error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("circuit %s %s: %v", e.Circuit, e.State, e.LastErr)
	}
	return fmt.Sprintf("circuit %s %s", e.Circuit, e.State)
}

// Is reports whether target is ErrCircuitOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// Unwrap returns the last observed failure.
func (e *OpenError) Unwrap() error {
	return e.LastErr
}

// TimeoutError is returned when a call does not finish within the call timeout.
type TimeoutError struct {
	Circuit string
	After   time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit %s: call timed out after %s", e.Circuit, e.After)
}

// Is reports whether target is ErrCallTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrCallTimeout
}

// Timeout marks the error as a timeout for net.Error-style checks.
func (e *TimeoutError) Timeout() bool { return true }
