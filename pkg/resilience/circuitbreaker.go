// Package resilience guards calls to remote dependencies with a circuit
// breaker and a token-bucket throttle.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of a Breaker.
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
	}
	return "unknown"
}

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// BreakerOpts configures a Breaker. Zero fields take DefaultBreakerOpts values.
type BreakerOpts struct {
	// FailThreshold consecutive failures open the breaker.
	FailThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// Probes is the number of calls admitted while half-open.
	Probes int
	// IsFailure decides which errors count against the breaker. Nil counts
	// every error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange is called with the lock released after each transition.
	OnStateChange func(from, to State)
}

var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Cooldown:      30 * time.Second,
	Probes:        1,
}

// Breaker is a closed/open/half-open circuit breaker.
type Breaker struct {
	opts BreakerOpts
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inflight int // probes admitted while half-open
}

func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultBreakerOpts.Cooldown
	}
	if opts.Probes <= 0 {
		opts.Probes = DefaultBreakerOpts.Probes
	}
	if opts.IsFailure == nil {
		opts.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the current state, moving open to half-open once the
// cooldown has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.refresh()
	b.mu.Unlock()
	b.notify(from, to)
	return to
}

// Do runs f unless the breaker rejects the call.
func (b *Breaker) Do(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err)
	return err
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, f func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = f(ctx)
		return err
	})
	return out, err
}

// refresh applies the cooldown transition. Must hold mu.
func (b *Breaker) refresh() (from, to State) {
	from = b.state
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Cooldown {
		b.state = StateHalfOpen
		b.inflight = 0
	}
	return from, b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	from, to := b.refresh()
	var err error
	switch to {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.inflight >= b.opts.Probes {
			err = ErrCircuitOpen
		} else {
			b.inflight++
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
	return err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err != nil && b.opts.IsFailure(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.inflight = 0
		}
	case err == nil:
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}
