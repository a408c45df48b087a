package deck

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Callback receives the result of an asynchronous operation. It is called
// exactly once, on a worker goroutine.
type Callback[T any] func(T, error)

// Await runs an asynchronous operation and waits for its callback. An error
// returned by op itself (a failed precondition) is returned as is.
func Await[T any](ctx context.Context, op func(cb Callback[T]) error) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	if err := op(func(v T, err error) { done <- result{v, err} }); err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// submit runs fn on the pool and hands its result to cb. A panic in fn is
// reported to cb as an error.
func submit[T any](s *Service, name string, cb Callback[T], fn func(ctx context.Context) (T, error)) error {
	return s.pool.Submit(context.Background(), func(ctx context.Context) {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Operation panicked", zap.String("operation", name), zap.Any("panic", r))
				var zero T
				v, err = zero, fmt.Errorf("%s: panic: %v", name, r)
			}
			cb(v, err)
		}()
		v, err = fn(ctx)
	})
}
