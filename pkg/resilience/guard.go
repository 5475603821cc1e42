package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Guard throttles calls with a token bucket and then passes them through a
// Breaker. Either part may be nil.
type Guard struct {
	Limiter *rate.Limiter
	Breaker *Breaker
}

// NewGuard builds a Guard allowing perSecond calls with the given burst.
// perSecond <= 0 disables throttling.
func NewGuard(perSecond float64, burst int, opts BreakerOpts) *Guard {
	g := &Guard{Breaker: NewBreaker(opts)}
	if perSecond > 0 {
		g.Limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
	return g
}

// Do waits for a token, then runs f through the breaker.
func (g *Guard) Do(ctx context.Context, f func(context.Context) error) error {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("resilience: throttle: %w", err)
		}
	}
	if g.Breaker == nil {
		return f(ctx)
	}
	return g.Breaker.Do(ctx, f)
}

// Guarded is Guard.Do for functions that return a value.
func Guarded[T any](ctx context.Context, g *Guard, f func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = f(ctx)
		return err
	})
	return out, err
}
