package pool

import (
	"context"
)

// Future is the pending result of a function running on a Pool.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a worker of p and returns a handle to its result. With a nil
// pool, fn runs on a dedicated goroutine. A task whose context is done before
// it starts is not run.
func Go[T any](p *Pool, ctx context.Context, name string, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	run := func(ctx context.Context) {
		defer close(f.done)
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.val, f.err = fn(ctx)
	}

	if p == nil {
		go run(ctx)
		return f
	}

	if err := p.Add(ctx, name, run); err != nil {
		f.err = err
		close(f.done)
	}

	return f
}

// Wait blocks until the result is available or ctx is done. Abandoning a
// future does not stop the function computing it.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
