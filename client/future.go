package client

import "context"

// Future is the pending result of an API call started with Go.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs call in its own goroutine and returns its pending result.
// Concurrent futures complete in no particular order.
func Go[T any](ctx context.Context, call func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = call(ctx)
	}()
	return f
}

// Done is closed once the call has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call completes or ctx is done. Giving up on the
// wait does not cancel the call; cancel the context passed to Go for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
