// Package engine executes blocking hardware calls off the caller's
// goroutine. Each Runner owns one worker that drains a FIFO queue, so
// every operation submitted to the same Runner runs alone and completes
// in submission order. Independent Runners execute in parallel.
package engine

import (
	"errors"
	"sync"
)

// ErrClosed is reported by futures whose work was submitted after the
// owning Runner stopped accepting jobs.
var ErrClosed = errors.New("engine: runner closed")

// Runner serializes the execution of submitted operations.
type Runner struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	done chan struct{}
}

// NewRunner starts a runner with the given name. The name only shows up
// in diagnostics; it is usually the connection string of the device the
// runner serves.
func NewRunner(name string) *Runner {
	r := &Runner{
		name: name,
		done: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.loop()
	return r
}

// Name returns the runner's diagnostic name.
func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			// Closed and drained.
			r.mu.Unlock()
			return
		}
		job := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		job()
	}
}

// submit enqueues a job, reporting false once the runner is closed.
func (r *Runner) submit(job func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.queue = append(r.queue, job)
	r.cond.Signal()
	return true
}

// Close stops intake. Jobs already queued still run; once the queue is
// empty the worker exits and Done is closed. Close is idempotent.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cond.Signal()
}

// Done is closed after the worker goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
