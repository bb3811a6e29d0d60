// Package resilience provides reliability patterns for calls to a remote
// prompt store.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithIgnore makes errors for which ignore returns true count as successful
// calls. Use it for answers that prove the remote side is healthy, such as
// "not found".
func WithIgnore(ignore func(error) bool) Option {
	return func(b *Breaker) { b.ignore = ignore }
}

// WithStateChange calls fn after every transition, with the breaker lock
// released. fn must not block.
func WithStateChange(fn func(from, to string)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker implements a circuit breaker pattern for protecting external calls.
// It tracks consecutive failures and opens the circuit when a threshold is reached,
// preventing further calls until a timeout elapses. In the half-open state a
// single probe call is let through.
type Breaker struct {
	mu          sync.Mutex
	state       state
	failures    int
	probing     bool
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	ignore      func(error) bool
	onChange    func(from, to string)
	now         func() time.Time // for testing
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before transitioning to half-open.
func NewBreaker(maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Execute runs fn if the circuit is closed or a half-open probe is due.
// Returns ErrCircuitOpen otherwise.
func (b *Breaker) Execute(fn func() error) error {
	allowed, from, to := b.allowRequest()
	b.notify(from, to)
	if !allowed {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	b.probing = false
	from = b.state
	if err != nil && (b.ignore == nil || !b.ignore(err)) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	to = b.state
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

func (b *Breaker) notify(from, to state) {
	if from != to && b.onChange != nil {
		b.onChange(from.String(), to.String())
	}
}

// State returns "closed", "open" or "half_open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// allowRequest reports whether a call may run, and the state before and
// after the check.
func (b *Breaker) allowRequest() (allowed bool, from, to state) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch b.state {
	case stateClosed:
		allowed = true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = stateHalfOpen
			b.probing = true
			allowed = true
		}
	case stateHalfOpen:
		if !b.probing {
			b.probing = true
			allowed = true
		}
	}
	return allowed, from, b.state
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = stateClosed
}
