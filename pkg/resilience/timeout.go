package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports an operation that outlived its limit. It matches
// context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// WithTimeout runs fn under a context that expires after timeout. It returns
// as soon as the limit passes, even if fn ignores its context, with a
// *TimeoutError naming the operation. A non-positive timeout runs fn with
// ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := CallWithTimeout(ctx, timeout, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// CallWithTimeout is WithTimeout for functions that produce a value. The
// value is handed over only when fn finishes in time; a late fn keeps running
// in the background and its result is discarded.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	limited, cancel := context.WithTimeoutCause(ctx, timeout, &TimeoutError{Op: name, Limit: timeout})
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(limited)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(r.err, context.DeadlineExceeded) {
			return zero, context.Cause(limited)
		}
		return r.val, r.err
	case <-limited.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		return zero, context.Cause(limited)
	}
}
