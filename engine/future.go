package engine

import "context"

// Future is the completion carrier for a submitted operation. It resolves
// exactly once and may be waited on by any number of goroutines.
type Future[T any] struct {
	op   string
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any](op string) *Future[T] {
	return &Future[T]{op: op, done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.val = v
	f.err = err
	close(f.done)
}

// Op returns the operation label the future was submitted under.
func (f *Future[T]) Op() string {
	return f.op
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future resolves.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait blocks until the future resolves or ctx is done. Cancellation
// abandons the wait, not the operation: the submitted call still runs to
// completion on its runner.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on r and returns immediately. The future resolves
// with fn's result once the runner reaches it, or with ErrClosed if r no
// longer accepts work.
func Submit[T any](r *Runner, op string, fn func() (T, error)) *Future[T] {
	f := newFuture[T](op)
	ok := r.submit(func() {
		f.complete(fn())
	})
	if !ok {
		var zero T
		f.complete(zero, ErrClosed)
	}
	return f
}

// Run executes fn on its own goroutine, outside any runner's queue. It
// exists for operations that must overlap an in-flight command, such as
// aborting one.
func Run[T any](op string, fn func() (T, error)) *Future[T] {
	f := newFuture[T](op)
	go func() {
		f.complete(fn())
	}()
	return f
}

// Completed returns an already resolved future. Callers use it to fail
// fast without touching a runner.
func Completed[T any](op string, v T, err error) *Future[T] {
	f := newFuture[T](op)
	f.complete(v, err)
	return f
}
