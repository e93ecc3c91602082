package testutil

import (
	"context"
	"testing"

	"github.com/roach88/diffable/internal/dispatch"
)

// StartExecutor runs a new executor on its own goroutine and stops it when
// the test ends.
func StartExecutor(t testing.TB) *dispatch.Executor {
	t.Helper()
	exec := dispatch.NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = exec.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return exec
}

// StartSerial is StartExecutor plus a serial dispatcher bound to it.
func StartSerial(t testing.TB) *dispatch.Serial {
	t.Helper()
	return dispatch.NewSerial(StartExecutor(t))
}
