package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable reports whether an error is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
}

// DefaultRetry suits calls to the graph store and the embedding service.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Jitter:      true,
}

// Retry calls f until it succeeds, the attempts run out, the error is not
// retryable or ctx is done. Waits double between attempts up to MaxWait.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	wait := opts.InitialWait
	var res Result[T]
	for attempt := 1; ; attempt++ {
		res = f(ctx)
		if res.IsOk() || attempt >= opts.MaxAttempts {
			return res
		}
		if opts.Retryable != nil && !opts.Retryable(res.Error()) {
			return res
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 {
			sleep = min(sleep, opts.MaxWait)
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
		wait *= 2
		if opts.MaxWait > 0 {
			wait = min(wait, opts.MaxWait)
		}
	}
}

// Retrying wraps a stage with Retry.
func Retrying[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
