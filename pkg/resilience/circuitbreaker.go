// Package resilience provides the fault-tolerance primitives used around
// record sources: a circuit breaker, exponential-backoff retry, and a
// context-based timeout wrapper.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is matched by every *OpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned instead of running a call while the breaker is open.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %s is open (retry after %v)", e.Name, e.RetryAfter.Round(time.Second))
}

func (e *OpenError) Unwrap() error {
	return ErrCircuitOpen
}

// State is a breaker phase. Its numeric value is exported as a gauge:
// 0 closed, 1 open, 2 half-open.
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

type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before one probe call
	// is let through. Default 30s.
	ResetTimeout time.Duration
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(State)
}

// CircuitBreaker stops calling a failing dependency for a cool-down period.
// Cancellation of the caller's context is not counted as a failure, so an
// aborted refresh cannot trip it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn when the circuit admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.transition(func() State {
		cb.failures = 0
		cb.probing = false
		return StateClosed
	})
}

func (cb *CircuitBreaker) admit() error {
	var err error
	cb.transition(func() State {
		switch cb.state {
		case StateOpen:
			wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
			if wait > 0 {
				err = &OpenError{Name: cb.name, RetryAfter: wait}
				return StateOpen
			}
			cb.probing = true
			return StateHalfOpen
		case StateHalfOpen:
			if cb.probing {
				err = &OpenError{Name: cb.name}
				return StateHalfOpen
			}
			cb.probing = true
		}
		return cb.state
	})
	return err
}

func (cb *CircuitBreaker) record(err error) {
	if errors.Is(err, context.Canceled) {
		cb.transition(func() State {
			cb.probing = false
			return cb.state
		})
		return
	}
	cb.transition(func() State {
		cb.probing = false
		if err == nil {
			cb.failures = 0
			return StateClosed
		}
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			return StateOpen
		}
		return cb.state
	})
}

// transition applies step under the lock and reports a state change, if
// any, once the lock is released.
func (cb *CircuitBreaker) transition(step func() State) {
	cb.mu.Lock()
	from := cb.state
	to := step()
	cb.state = to
	failures := cb.failures
	cb.mu.Unlock()

	if from == to {
		return
	}
	switch to {
	case StateOpen:
		cb.logger.Warn("circuit opened", "from", from, "consecutive_failures", failures)
	default:
		cb.logger.Info("circuit state changed", "from", from, "to", to)
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(to)
	}
}
