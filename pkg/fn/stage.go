package fn

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/bmwdex/bmwdex/pkg/fn")

// Stage turns an In into an Out.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then runs second on the output of first. An error from first skips second.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		b, err := first(ctx, a).Unwrap()
		if err != nil {
			return Err[C](err)
		}
		return second(ctx, b)
	}
}

// Lift adapts an ordinary fallible function into a Stage.
func Lift[In, Out any](f func(context.Context, In) (Out, error)) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return FromPair(f(ctx, in))
	}
}

// Pure adapts an infallible function into a Stage.
func Pure[In, Out any](f func(In) Out) Stage[In, Out] {
	return func(_ context.Context, in In) Result[Out] {
		return Ok(f(in))
	}
}

// Tap runs f for its side effect and passes the value through.
func Tap[T any](f func(context.Context, T)) Stage[T, T] {
	return func(ctx context.Context, t T) Result[T] {
		f(ctx, t)
		return Ok(t)
	}
}

// Traced runs stage inside a span called name and marks the span on error.
func Traced[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := tracer.Start(ctx, name)
		defer span.End()
		res := stage(ctx, in)
		if err := res.Error(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return res
	}
}

// Logged wraps stage with a span and debug logs on entry and exit. Failures
// are logged at warn level with their duration.
func Logged[In, Out any](name string, log *slog.Logger, stage Stage[In, Out]) Stage[In, Out] {
	if log == nil {
		log = slog.Default()
	}
	traced := Traced(name, stage)
	return func(ctx context.Context, in In) Result[Out] {
		start := time.Now()
		log.DebugContext(ctx, "stage.enter", "stage", name)
		res := traced(ctx, in)
		if err := res.Error(); err != nil {
			log.WarnContext(ctx, "stage.failed", "stage", name, "duration", time.Since(start), "error", err)
			return res
		}
		log.DebugContext(ctx, "stage.exit", "stage", name, "duration", time.Since(start))
		return res
	}
}

// Annotate adds attributes to the span active in ctx. It is a no-op when no
// span is recording.
func Annotate(ctx context.Context, kv ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(kv...)
}
