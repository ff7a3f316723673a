// Package breaker implements a named circuit breaker guarding a single
// fallible call-site. One instance is shared process-wide per protected
// dependency; state lives in memory and resets on restart.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed means the circuit is operational and calls flow through.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls are rejected.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency has recovered.
	StateHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds configuration for the circuit breaker.
type Config struct {
	// FailureThreshold is the number of qualifying failures within
	// MonitoringPeriod before the circuit trips.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	SuccessThreshold int
	// ResetTimeout is the minimum time an open circuit waits before
	// allowing a half-open trial call.
	ResetTimeout time.Duration
	// Timeout is the per-call deadline. A call exceeding it is aborted
	// and counted as a failure. Zero disables the per-call deadline.
	Timeout time.Duration
	// MonitoringPeriod is the rolling window over which failures are
	// counted while closed.
	MonitoringPeriod time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// Nil means every error counts. Caller-fault errors (bad input)
	// should return false so they do not trip the circuit.
	IsFailure func(error) bool
	// OnStateChange, when set, is invoked on every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the thresholds used for the vision-provider call.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		ResetTimeout:     2 * time.Minute,
		Timeout:          2 * time.Minute,
		MonitoringPeriod: 5 * time.Minute,
	}
}

// OpenError is returned when the circuit rejects a call without invoking
// the wrapped action. NextAttempt is when the next trial will be allowed.
// The breaker never retries on the caller's behalf; treat this as
// "try again later", not as a data-quality problem.
type OpenError struct {
	Name        string
	NextAttempt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, next attempt at %s",
		e.Name, e.NextAttempt.Format(time.RFC3339))
}

// Status is a point-in-time snapshot of the breaker for health reporting.
type Status struct {
	Name            string     `json:"name"`
	State           string     `json:"state"`
	WindowFailures  int        `json:"windowFailures"`
	TotalSuccesses  uint64     `json:"totalSuccesses"`
	TotalFailures   uint64     `json:"totalFailures"`
	TotalRejections uint64     `json:"totalRejections"`
	NextAttemptTime *time.Time `json:"nextAttemptTime,omitempty"`
}

// CircuitBreaker guards one fallible call-site. Safe for concurrent use;
// its counters and state transitions are the only synchronized state
// shared by concurrent analyses.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu                sync.Mutex
	state             State
	windowFailures    int
	windowStart       time.Time
	halfOpenSuccesses int
	trialInFlight     bool
	nextAttempt       time.Time

	totalSuccesses  uint64
	totalFailures   uint64
	totalRejections uint64

	now func() time.Time
}

// New creates a circuit breaker with the given name and configuration.
func New(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Status returns a snapshot for the health endpoint.
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Status{
		Name:            cb.name,
		State:           cb.state.String(),
		WindowFailures:  cb.windowFailures,
		TotalSuccesses:  cb.totalSuccesses,
		TotalFailures:   cb.totalFailures,
		TotalRejections: cb.totalRejections,
	}
	if cb.state == StateOpen {
		next := cb.nextAttempt
		s.NextAttemptTime = &next
	}
	return s
}

// Reset manually resets the circuit breaker to closed state. Intended for
// tests and manual intervention only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	transition := cb.setState(StateClosed)
	cb.windowFailures = 0
	cb.halfOpenSuccesses = 0
	cb.trialInFlight = false
	cb.mu.Unlock()
	cb.notify(transition)
}

// transition records an old/new state pair so the OnStateChange callback
// can run outside the lock.
type transition struct {
	from, to State
	fired    bool
}

func (cb *CircuitBreaker) setState(to State) transition {
	if cb.state == to {
		return transition{}
	}
	tr := transition{from: cb.state, to: to, fired: true}
	cb.state = to
	return tr
}

func (cb *CircuitBreaker) notify(tr transition) {
	if tr.fired && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, tr.from, tr.to)
	}
}

// allow decides whether a call may proceed, transitioning open circuits to
// half-open once the reset timeout has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	var tr transition
	var err error

	switch cb.state {
	case StateClosed:
		// Expire the rolling failure window.
		if cb.cfg.MonitoringPeriod > 0 && !cb.windowStart.IsZero() &&
			cb.now().Sub(cb.windowStart) > cb.cfg.MonitoringPeriod {
			cb.windowFailures = 0
			cb.windowStart = time.Time{}
		}
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			cb.totalRejections++
			err = &OpenError{Name: cb.name, NextAttempt: cb.nextAttempt}
			break
		}
		tr = cb.setState(StateHalfOpen)
		cb.halfOpenSuccesses = 0
		cb.trialInFlight = true
	case StateHalfOpen:
		if cb.trialInFlight {
			// One trial at a time while probing recovery.
			cb.totalRejections++
			err = &OpenError{Name: cb.name, NextAttempt: cb.nextAttempt}
			break
		}
		cb.trialInFlight = true
	}

	cb.mu.Unlock()
	cb.notify(tr)
	return err
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	var tr transition
	cb.totalSuccesses++

	switch cb.state {
	case StateHalfOpen:
		cb.trialInFlight = false
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
			tr = cb.setState(StateClosed)
			cb.windowFailures = 0
			cb.windowStart = time.Time{}
		}
	default:
		cb.windowFailures = 0
		cb.windowStart = time.Time{}
	}

	cb.mu.Unlock()
	cb.notify(tr)
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	var tr transition
	cb.totalFailures++
	now := cb.now()

	switch cb.state {
	case StateHalfOpen:
		// Any failure while probing reopens the circuit.
		cb.trialInFlight = false
		tr = cb.setState(StateOpen)
		cb.nextAttempt = now.Add(cb.cfg.ResetTimeout)
	case StateClosed:
		if cb.cfg.MonitoringPeriod > 0 && !cb.windowStart.IsZero() &&
			now.Sub(cb.windowStart) > cb.cfg.MonitoringPeriod {
			cb.windowFailures = 0
			cb.windowStart = time.Time{}
		}
		if cb.windowStart.IsZero() {
			cb.windowStart = now
		}
		cb.windowFailures++
		if cb.windowFailures >= cb.cfg.FailureThreshold {
			tr = cb.setState(StateOpen)
			cb.nextAttempt = now.Add(cb.cfg.ResetTimeout)
		}
	}

	cb.mu.Unlock()
	cb.notify(tr)
}

type outcome[T any] struct {
	value T
	err   error
}

// Execute runs fn through the breaker. When the circuit is open the call
// fails immediately with *OpenError without invoking fn. The configured
// per-call timeout is applied to fn's context; a call that outlives it is
// abandoned and counted as a failure even if fn ignores cancellation.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := cb.allow(); err != nil {
		return zero, err
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cb.cfg.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.Timeout)
	}
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		value, err := fn(callCtx)
		ch <- outcome[T]{value: value, err: err}
	}()

	var result outcome[T]
	select {
	case <-callCtx.Done():
		result = outcome[T]{err: fmt.Errorf("circuit breaker %q call aborted: %w", cb.name, callCtx.Err())}
	case result = <-ch:
	}

	if result.err != nil {
		if cb.isFailure(result.err) {
			cb.recordFailure()
		} else {
			// The dependency answered; a caller-fault error is not
			// evidence of provider trouble.
			cb.recordSuccess()
		}
		return zero, result.err
	}

	cb.recordSuccess()
	return result.value, nil
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if cb.cfg.IsFailure == nil {
		return true
	}
	return cb.cfg.IsFailure(err)
}
