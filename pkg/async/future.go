// Package async runs a single blocking call in its own goroutine and hands
// the outcome back through a Future.
package async

import (
	"context"
)

// Result holds the outcome of a call, so it can be passed on a channel.
type Result[T any] struct {
	Val T
	Err error
}

// Future is the pending result of one call.
type Future[T any] struct {
	done chan struct{}
	res  Result[T]
}

// Go starts fn(ctx) in a new goroutine. ctx is handed to fn unchanged, so
// cancelling it cancels the underlying call.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.res.Val, f.res.Err = fn(ctx)
	}()
	return f
}

// Failed returns a Future that is already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.res.Err = err
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call finishes or ctx is done. Giving up on the
// wait does not cancel the call itself; cancel the context given to Go for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.Val, f.res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the call finishes.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.res.Val, f.res.Err
}

// Chan delivers the result on a buffered channel, which is never closed.
func (f *Future[T]) Chan() <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		<-f.done
		ch <- f.res
	}()
	return ch
}
