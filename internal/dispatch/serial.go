package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBarrierOnExecutor is returned by Barrier when it is called from the
// designated context, where waiting would deadlock.
var ErrBarrierOnExecutor = errors.New("dispatch: barrier called from the designated context")

// Serial runs actions one at a time on an Executor, in dispatch order.
//
// pending counts actions that are queued or running. The count is what
// decides between the inline fast path and posting: an action dispatched
// from the designated context while nothing else is pending runs
// immediately, anything else waits its turn. Actions dispatched from inside
// a running action are therefore always deferred, never nested.
type Serial struct {
	exec    *Executor
	pending atomic.Int32
}

// NewSerial creates a dispatcher bound to exec.
func NewSerial(exec *Executor) *Serial {
	return &Serial{exec: exec}
}

// Executor returns the executor actions run on.
func (s *Serial) Executor() *Executor {
	return s.exec
}

// Dispatch schedules action. When it returns nil the action has either run
// inline or is queued; ErrStopped means it will never run.
func (s *Serial) Dispatch(ctx context.Context, action Task) error {
	n := s.pending.Add(1)
	if n == 1 && s.exec.IsCurrent(ctx) {
		defer s.pending.Add(-1)
		action(ctx)
		return nil
	}

	posted := s.exec.Post(func(taskCtx context.Context) {
		defer s.pending.Add(-1)
		action(taskCtx)
	})
	if !posted {
		s.pending.Add(-1)
		return ErrStopped
	}
	return nil
}

// Pending returns the number of actions queued or running.
func (s *Serial) Pending() int {
	return int(s.pending.Load())
}

// Barrier blocks until every action dispatched before the call has run, or
// ctx is done.
func (s *Serial) Barrier(ctx context.Context) error {
	if s.exec.IsCurrent(ctx) {
		return ErrBarrierOnExecutor
	}
	return s.exec.Call(ctx, func(context.Context) error { return nil })
}
