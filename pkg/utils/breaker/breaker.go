// Package breaker provides a circuit breaker for LLM provider calls.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// State is the circuit state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	defaultFailureThreshold    = 5
	defaultResetTimeout        = 60 * time.Second
	defaultHalfOpenMaxAttempts = 3
)

// Breaker wraps calls to an unreliable dependency and rejects them fast
// once consecutive failures pass a threshold.
type Breaker struct {
	mu sync.Mutex

	state             State
	failureCount      int
	lastFailure       time.Time
	halfOpenSuccesses int

	failureThreshold    int
	resetTimeout        time.Duration
	halfOpenMaxAttempts int
	now                 func() time.Time
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithResetTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

func WithHalfOpenMaxAttempts(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.halfOpenMaxAttempts = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:               StateClosed,
		failureThreshold:    defaultFailureThreshold,
		resetTimeout:        defaultResetTimeout,
		halfOpenMaxAttempts: defaultHalfOpenMaxAttempts,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current circuit state, accounting for reset timeout
// expiry on an open circuit.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.lastFailure) > b.resetTimeout {
		b.state = StateHalfOpen
		b.halfOpenSuccesses = 0
	}
	return b.state
}

// Do executes op under the circuit breaker. When the circuit is open it
// returns types.ErrCircuitOpen without invoking op.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.currentState()
	if state == StateOpen {
		b.mu.Unlock()
		return goerr.Wrap(types.ErrCircuitOpen, "circuit breaker is open",
			goerr.V("failureCount", b.failureCount),
		)
	}
	b.mu.Unlock()

	if err := op(ctx); err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Only half-open probes count toward recovery. A circuit stays
	// half-open until enough consecutive probes succeed.
	if b.state != StateHalfOpen {
		return
	}
	b.halfOpenSuccesses++
	if b.halfOpenSuccesses >= b.halfOpenMaxAttempts {
		b.state = StateClosed
		b.failureCount = 0
		b.halfOpenSuccesses = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		// A probe failed: trip back open. The accumulated failure count
		// is kept so the history of the outage is not lost.
		b.state = StateOpen
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// FailureCount returns the consecutive failure counter. Mostly useful
// for logging and tests.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
