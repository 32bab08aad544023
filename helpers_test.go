package fimo

import (
	"context"
	"testing"
	"time"

	"github.com/fimoengine/fimo-go/internal/executor"
)

var tctx = context.Background()

// await drives fut to completion on a background goroutine with a
// generous timeout, since Await must not be called from the Executor's
// own loop goroutine and these tests run on an ordinary test goroutine.
func await[T any](t *testing.T, fut executor.Future[T]) (T, error) {
	t.Helper()
	bc := executor.NewBlockingContext()
	done := make(chan struct{})
	var v T
	var err error
	go func() {
		v, err = executor.Await(bc, fut)
		close(done)
	}()
	select {
	case <-done:
		return v, err
	case <-time.After(5 * time.Second):
		t.Fatal("future never resolved")
		return v, err
	}
}
