package executor

import "sync/atomic"

// Waker is a reference-counted handle that, when invoked, schedules its
// associated task for re-polling (spec.md §3, §4.2). Invoking a Waker is
// thread-safe and idempotent: many wakes before the task is actually
// re-polled coalesce into a single re-poll, grounded on eventloop/loop.go's
// wakeUpSignalPending atomic.Uint32 dedup flag and submitWakeup/doWakeup
// pair, which the same way collapse repeated wake requests arriving before
// the loop drains its current tick.
type Waker struct {
	refs    atomic.Int64
	pending atomic.Bool
	wake    func()
}

// newWaker creates a Waker with one implicit reference, wrapping wake,
// the function invoked (at most once per wake generation) when Wake is
// called while no wake is already pending.
func newWaker(wake func()) *Waker {
	w := &Waker{wake: wake}
	w.refs.Store(1)
	return w
}

// Clone increments the reference count and returns the same handle. A
// future that must hold a waker across suspension (spec.md §4.2 "Waker
// discipline") calls Clone before returning Pending, then Release when it
// no longer needs it.
func (w *Waker) Clone() *Waker {
	if w == nil {
		return nil
	}
	w.refs.Add(1)
	return w
}

// Release decrements the reference count. Decrementing without a matching
// Clone is a programmer error per spec.md §4.2; this implementation does
// not attempt to detect that case (the refcount is advisory bookkeeping
// used only by tests and debug assertions, not for resource reclamation,
// since a Waker owns no resources beyond the wake closure).
func (w *Waker) Release() {
	if w == nil {
		return
	}
	w.refs.Add(-1)
}

// RefCount reports the current reference count, for tests.
func (w *Waker) RefCount() int64 {
	if w == nil {
		return 0
	}
	return w.refs.Load()
}

// Wake schedules the associated task for re-polling. Calling Wake multiple
// times before the task is actually re-polled coalesces to at most one
// re-poll, matching spec.md's Waker invariant.
func (w *Waker) Wake() {
	if w == nil || w.wake == nil {
		return
	}
	if w.pending.CompareAndSwap(false, true) {
		w.wake()
	}
}

// clearPending is invoked by the Executor immediately before re-polling the
// task, so that a Wake arriving during the poll schedules a further
// re-poll rather than being silently dropped.
func (w *Waker) clearPending() {
	if w == nil {
		return
	}
	w.pending.Store(false)
}
