// Package circuitbreaker provides a defensive mechanism that stops hammering
// the external payment API once it starts failing consistently.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls fail fast
	StateHalfOpen              // Testing if the collaborator has recovered
)

// String returns a human-readable state name for status endpoints and logs.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen is returned by Allow while the circuit is open. Callers convert it
// into an ordinary failed outcome; it must never abort a batch.
var ErrOpen = errors.New("circuit breaker open: payment collaborator unavailable")

// CircuitBreaker trips after a run of consecutive failures and fails fast
// until a cooldown elapses, then probes recovery in half-open state.
type CircuitBreaker struct {
	// Number of consecutive failures that trips the circuit
	failureThreshold int

	// Duration before an open circuit allows a recovery probe
	resetDelay time.Duration

	// Number of consecutive successes required to close a half-open circuit
	successThreshold int

	// Event callback for monitoring/alerting
	onTripCallback func(reason string)

	mu           sync.RWMutex
	state        State
	failureCount int
	successCount int
	lastTrip     time.Time
	lastError    string
}

// New creates a CircuitBreaker with the given consecutive-failure threshold.
func New(failureThreshold int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
		state:            StateClosed,
	}
}

// WithResetDelay sets a custom cooldown and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful calls needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback invoked whenever the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Allow reports whether a call may proceed. While open it returns ErrOpen
// until the reset delay has elapsed, at which point the circuit moves to
// half-open and lets a probe call through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastTrip) < cb.resetDelay {
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: probing payment collaborator recovery")
	}

	return nil
}

// RecordSuccess notes a successful call, closing a half-open circuit once
// enough consecutive successes accumulate.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: payment collaborator recovered")
		}
	}
}

// RecordFailure notes a failed call. A failure during half-open, or the Nth
// consecutive failure while closed, trips the circuit open.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.lastError = err.Error()
	}

	if cb.state == StateHalfOpen {
		cb.trip("recovery probe failed")
		return
	}

	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.trip("consecutive failure threshold reached")
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// LastError returns the most recent failure detail, for status reporting.
func (cb *CircuitBreaker) LastError() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.lastError
}

// Reset forcibly returns the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// trip opens the circuit; caller must hold the lock.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	cb.failureCount = 0
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}
