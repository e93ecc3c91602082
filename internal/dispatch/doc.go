// Package dispatch provides the designated execution context that every view
// update runs on, and the serial dispatcher that funnels apply requests onto
// it.
//
// Executor:
// One goroutine calls Executor.Run and becomes the designated context. Tasks
// posted from any goroutine run there one at a time in FIFO order. Each task
// receives a context marked with its executor, so code can ask
// Executor.IsCurrent(ctx) instead of relying on goroutine identity. Task
// contexts must not be handed to other goroutines.
//
// Serial:
// Dispatch keeps an atomic count of actions that are queued or running. When
// the caller is already on the designated context and nothing else is
// pending, the action runs inline; otherwise it is posted behind whatever is
// already queued. Actions never overlap and run in dispatch order.
//
// Clock:
// A monotonic logical clock. Apply sequence numbers come from Clock.Next,
// never from wall time.
package dispatch
