package executor

import (
	"sync"
	"sync/atomic"
)

// task is the Executor's internal representation of an enqueued future
// (spec.md §3 Task: "an enqueued future plus its result buffer and
// cleanup callbacks. Owned exclusively by the Executor once enqueued").
type task struct {
	id            uint64
	fut           erasedFuture
	waker         *Waker
	cleanupData   func()
	cleanupResult func(any)

	resultReady atomic.Bool
	consumed    atomic.Bool
	result      any
	err         error

	cancelled atomic.Bool
	queued    atomic.Bool // dedup: already sitting in the ready queue

	observersMu sync.Mutex
	observers   []*Waker

	reschedule func() // schedules this task back onto the Executor's ready queue
}

// cancel marks the task cancelled and ensures it is scheduled at least once
// more so the Executor's loop observes the flag and runs cleanup. The
// Executor's next scheduled poll for this task skips execution and
// proceeds straight to cleanup, matching spec.md §4.1 "Cancellation".
func (t *task) cancel() {
	t.cancelled.Store(true)
	if t.reschedule != nil {
		t.reschedule()
	}
}

// markConsumed reports whether this call is the first to observe a ready
// result, used to decide whether cleanupResult must still run when the
// task is later dropped unconsumed.
func (t *task) markConsumed() bool {
	return t.consumed.CompareAndSwap(false, true)
}
