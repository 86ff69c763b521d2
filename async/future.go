package async

import (
	"context"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrTaskPanicked is matched by the error of a future whose task panicked.
var ErrTaskPanicked = errors.New("async: task panicked")

// Future is the pending result of a task submitted to an Executor.
type Future[V any] struct {
	done  chan struct{}
	value V
	err   error
}

func newFuture[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

func (f *Future[V]) resolve(value V, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends. Cancelling ctx
// stops the wait only; the task itself keeps running.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Go runs fn on exec and returns its future. If exec refuses the task the
// future is already resolved with the submit error.
func Go[V any](exec Executor, fn func() (V, error)) *Future[V] {
	f := newFuture[V]()

	err := exec.Submit(func() {
		var (
			value V
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero V
				f.resolve(zero, panicError(r))
				return
			}
			f.resolve(value, err)
		}()
		value, err = fn()
	})
	if err != nil {
		var zero V
		f.resolve(zero, err)
	}

	return f
}

func panicError(r any) error {
	return goerrors.Wrap(
		ErrTaskPanicked,
		goerrors.CategoryInternal,
		fmt.Sprintf("async task panicked: %v", r),
	)
}
