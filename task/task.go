// Package task runs asynchronous work whose result can be abandoned. Once a
// Future is cancelled its result is discarded even if the work completes.
package task

import (
	"context"
	"sync"
)

type Future[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	value     T
	err       error
}

// Go starts fn with a context derived from ctx. Cancelling ctx cancels the Future.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer cancel()
		v, err := fn(ctx)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cancelled || ctx.Err() != nil {
			f.cancelled = true
			f.err = context.Canceled
			return
		}
		f.value, f.err = v, err
	}()
	return f
}

// Cancel abandons the Future. It is safe to call more than once.
func (f *Future[T]) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
	f.cancel()
}

// Await blocks until the work finishes or ctx is done. A cancelled Future
// returns context.Canceled and a zero value.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-f.done:
	case <-ctx.Done():
		f.Cancel()
		return zero, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return zero, context.Canceled
	}
	return f.value, f.err
}

// Done is closed when the work has returned.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
