package executor

import "sync"

// BlockingContext is the only supported bridge for an external thread
// (spec.md §5 "External threads"): it creates a private waker and blocks
// its goroutine on a condition variable until the future it is awaiting
// polls Ready. The Executor's own loop goroutine invokes that waker from
// its own context to release the blocked caller.
//
// Grounded on eventloop's loopDone-channel-plus-blocking-Run/Shutdown
// pattern, generalized from "wait for the whole loop to drain" to "wait
// for one specific future".
type BlockingContext struct {
	mu        sync.Mutex
	cond      *sync.Cond
	signalled bool
}

// NewBlockingContext creates a per-caller blocking bridge.
func NewBlockingContext() *BlockingContext {
	bc := &BlockingContext{}
	bc.cond = sync.NewCond(&bc.mu)
	return bc
}

// Waker returns a Waker that, when invoked, wakes the goroutine blocked in
// BlockUntilNotified.
func (bc *BlockingContext) Waker() *Waker {
	return newWaker(func() {
		bc.mu.Lock()
		bc.signalled = true
		bc.cond.Broadcast()
		bc.mu.Unlock()
	})
}

// BlockUntilNotified blocks the calling goroutine until the waker returned
// by Waker is invoked at least once since the last call to
// BlockUntilNotified.
func (bc *BlockingContext) BlockUntilNotified() {
	bc.mu.Lock()
	for !bc.signalled {
		bc.cond.Wait()
	}
	bc.signalled = false
	bc.mu.Unlock()
}

// Await polls fut to completion by alternating Poll calls with blocking
// waits on this context's waker. It must not be called from the
// Executor's own loop goroutine (that would block the single thread the
// whole subsystem depends on); it is meant for external callers bridging
// into a Future-returning API synchronously.
func Await[T any](bc *BlockingContext, fut Future[T]) (T, error) {
	w := bc.Waker()
	for {
		w.clearPending()
		v, ready, err := fut.Poll(w)
		if ready {
			return v, err
		}
		bc.BlockUntilNotified()
	}
}
