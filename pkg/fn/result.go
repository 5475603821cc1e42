// Package fn is the small generic toolkit the catalog pipelines are composed
// from: a Result type, stages that chain and trace, bounded parallel maps and
// a handful of slice helpers.
package fn

import (
	"errors"
	"fmt"
)

var errNilErr = errors.New("fn: Err called with nil error")

// Result holds either a value or an error.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps an error. A nil error is replaced so the Result still reads as failed.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errNilErr
	}
	return Result[T]{err: err}
}

// Errf is Err with fmt.Errorf formatting, %w included.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// FromPair lifts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and the error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Error returns the wrapped error, nil on success.
func (r Result[T]) Error() error { return r.err }

// UnwrapOr returns the value, or fallback on error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.val
}

// MapResult converts a Result[T] into a Result[U], carrying errors through.
func MapResult[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(f(r.val))
}

// Collect returns every value, or the first error in order.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return Err[[]T](r.err)
		}
		out = append(out, r.val)
	}
	return Ok(out)
}

// Partition splits results into values and errors, keeping the order of each.
func Partition[T any](results []Result[T]) ([]T, []error) {
	var vals []T
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		vals = append(vals, r.val)
	}
	return vals, errs
}
