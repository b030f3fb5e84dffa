package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the position of a circuit breaker
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

var (
	// ErrCircuitOpen is returned while the breaker is rejecting calls
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned when a half-open breaker is already testing the dependency
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// CircuitBreaker stops calling a dependency after repeated failures and lets
// a single probe through once the cool-down has passed.
type CircuitBreaker struct {
	name        string
	maxFailures int
	coolDown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, maxFailures int, coolDown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		coolDown:    coolDown,
		now:         time.Now,
		state:       BreakerClosed,
	}
}

// Execute runs fn unless the breaker is open. A cancelled context is the
// caller's doing and is not counted against the dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
	if err != nil && ctx.Err() == nil {
		cb.recordFailure()
		return err
	}
	if err == nil {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.coolDown {
			return ErrCircuitOpen
		}
		cb.setState(BreakerHalfOpen)
		cb.probing = true
	case BreakerHalfOpen:
		if cb.probing {
			return ErrProbeInFlight
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
		cb.setState(BreakerOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failures = 0
	if cb.state != BreakerClosed {
		cb.setState(BreakerClosed)
	}
}

func (cb *CircuitBreaker) setState(s BreakerState) {
	if cb.state == s {
		return
	}
	logrus.WithFields(logrus.Fields{
		"breaker": cb.name,
		"from":    cb.state,
		"to":      s,
	}).Warn("Circuit breaker state change")
	cb.state = s
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
