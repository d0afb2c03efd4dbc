package transport

import (
	"sync"
	"time"
)

// circuitState names the three states of a CircuitBreaker.
type circuitState int

const (
	closed circuitState = iota
	open
	halfOpen
)

// CircuitBreaker trips after a run of consecutive Transport failures and
// stays open for resetTimeout, so a Reel Player run stops hammering a
// downed dependency, per SPEC_FULL.md §4.7/§10. It is shared across every
// Frame dispatched within one record/vrecord invocation.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration
	failures     int
	lastFailure  time.Time
	state        circuitState
}

// NewCircuitBreaker builds a breaker that opens after threshold
// consecutive failures and attempts recovery after resetTimeout.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 10 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, resetTimeout: resetTimeout}
}

// Allow reports whether a dispatch may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == open {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = halfOpen
			return true
		}
		return false
	}
	return true
}

// Success resets the failure count and closes the breaker.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = closed
}

// Failure records a dispatch failure, opening the breaker once the
// threshold is reached.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.threshold {
		cb.state = open
	}
}
