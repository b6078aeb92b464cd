package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the breaker's position in its lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards calls to an upstream that may be down. After
// maxFailures consecutive failures the breaker opens and rejects calls
// without touching the upstream; after resetTimeout a probe call is let
// through, and a successful probe closes the breaker again.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	logger       *logrus.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// New creates a closed circuit breaker.
func New(name string, maxFailures int, resetTimeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome. When the
// breaker is open it returns an *OpenError without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return &OpenError{Name: cb.name}
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the breaker's current state, transitioning open to half-open
// when the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state != StateOpen
}

func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.logger.WithFields(logrus.Fields{
			"breaker": cb.name,
			"state":   StateHalfOpen.String(),
		}).Info("Circuit breaker allowing probe call")
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state != StateClosed {
			cb.logger.WithFields(logrus.Fields{
				"breaker": cb.name,
				"state":   StateClosed.String(),
			}).Info("Circuit breaker closed after successful call")
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.logger.WithFields(logrus.Fields{
				"breaker":  cb.name,
				"failures": cb.failures,
				"state":    StateOpen.String(),
			}).Warn("Circuit breaker opened")
		}
		cb.state = StateOpen
	}
}

// OpenError reports a call rejected by an open breaker.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// IsOpenError reports whether err is a breaker rejection rather than an
// upstream failure.
func IsOpenError(err error) bool {
	_, ok := err.(*OpenError)
	return ok
}
