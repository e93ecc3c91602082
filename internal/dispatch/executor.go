package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

var (
	// ErrStopped is returned when work is submitted to a stopped executor.
	ErrStopped = errors.New("dispatch: executor stopped")

	// ErrAlreadyRunning is returned by Run when another goroutine already
	// drives the executor.
	ErrAlreadyRunning = errors.New("dispatch: executor already running")
)

type executorKey struct{}

// Executor is the designated execution context.
//
// Thread-safety model:
//   - Post, Call, IsCurrent, Stop: safe from any goroutine
//   - Run: called from exactly one goroutine, which becomes the designated
//     context until Run returns
type Executor struct {
	queue   *taskQueue
	running atomic.Bool
}

// NewExecutor creates an executor. Nothing runs until Run is called.
func NewExecutor() *Executor {
	return &Executor{queue: newTaskQueue()}
}

// Post queues a task. It never blocks and returns false once the executor
// has been stopped.
func (e *Executor) Post(task Task) bool {
	return e.queue.Enqueue(task)
}

// IsCurrent reports whether ctx belongs to a task running on this executor.
func (e *Executor) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(executorKey{}).(*Executor)
	return owner == e
}

// Run drains the task queue on the calling goroutine. It returns ctx.Err()
// when ctx is cancelled, or nil once Stop was called and every queued task
// has run. Panics raised by tasks are not recovered.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	slog.Debug("executor starting")
	taskCtx := context.WithValue(ctx, executorKey{}, e)

	for {
		if task, ok := e.queue.TryDequeue(); ok {
			task(taskCtx)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("executor stopping: context cancelled", "dropped_tasks", e.queue.Len())
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// A stale signal may wake us with nothing queued; only a
			// closed and empty queue ends the loop.
			if e.queue.Drained() {
				slog.Debug("executor stopping: queue closed")
				return nil
			}
		}
	}
}

// Call runs fn on the executor and waits for its result. From the
// designated context fn runs inline. If ctx is cancelled while waiting, Call
// returns ctx.Err() and fn may still run later.
func (e *Executor) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.IsCurrent(ctx) {
		return fn(ctx)
	}
	done := make(chan error, 1)
	if !e.Post(func(taskCtx context.Context) { done <- fn(taskCtx) }) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new tasks. Run returns after the queued ones have run.
func (e *Executor) Stop() {
	e.queue.Close()
}

// Len returns the number of queued tasks.
func (e *Executor) Len() int {
	return e.queue.Len()
}
