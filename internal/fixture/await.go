package fixture

import "context"

// Awaitable is a value whose result arrives later. Asynchronous fixtures wait
// on Awaitable results before handing them to their dependents.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Future is an Awaitable fed by a single goroutine.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether the future has completed.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await returns v's eventual result if it is Awaitable, and v itself otherwise.
func Await(ctx context.Context, v any) (any, error) {
	awaitable, ok := v.(Awaitable)
	if !ok {
		return v, nil
	}

	return awaitable.Await(ctx)
}

// Go runs fn in a new goroutine and returns a Future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	future := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(future.done)

		future.value, future.err = fn()
	}()

	return future
}

// Ready returns an already completed Future holding v.
func Ready[T any](v T) *Future[T] {
	future := &Future[T]{done: make(chan struct{}), value: v}
	close(future.done)

	return future
}
