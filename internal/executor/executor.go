package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fimoengine/fimo-go/internal/obslog"
)

// Executor is the single-threaded cooperative scheduler of spec.md §4.1.
// It owns one goroutine standing in for the single OS thread the
// specification describes; every mutation of the core subsystems built on
// top of it (registry, symbol index, graph, loading sets) happens only
// while that goroutine is executing, so none of those subsystems need
// internal locks (spec.md §5 "Shared-resource policy").
//
// Grounded on eventloop/loop.go's Loop: a FIFO ready queue drained by one
// goroutine, an atomic state machine (state.go, grounded on
// eventloop/state.go's FastState), and a dedup'd wake signal (waker.go,
// grounded on eventloop's wakeUpSignalPending).
type Executor struct {
	state *atomicState

	mu        sync.Mutex
	readyHead []*task // FIFO; appended to and drained under mu

	outstanding atomic.Int64 // tasks enqueued but not yet resolved+cleaned
	stopRequest atomic.Bool

	wake     chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	nextID atomic.Uint64

	loopGoroutine atomic.Value // stores goroutineTag while a loop is active, for isLoopThread checks

	log *obslog.Logger
}

// New constructs an Executor in StateIdle. Logger may be nil, in which
// case logging is a no-op.
func New(opts ...ExecutorOption) *Executor {
	cfg := resolveOptions(opts)
	ex := &Executor{
		state: newAtomicState(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		log:   cfg.logger,
	}
	if ex.log == nil {
		ex.log = obslog.Noop()
	}
	return ex
}

// Handle is returned by Start; it supports Join (block until the loop
// drains) and Detach (let it run to completion unattended), matching
// spec.md §4.1 "Start event loop ... Returns a handle supporting join ...
// and detach".
type Handle struct {
	ex *Executor
}

// Start creates the event loop goroutine. It fails with ErrAlreadyRunning
// if this Executor is already running (spec.md: "fails if one already
// exists for this process" — scoped here to one Executor instance rather
// than the whole OS process, since a Go program may legitimately host more
// than one independent fimo Context/Executor pair in tests).
func (ex *Executor) Start() (*Handle, error) {
	if !ex.state.CAS(StateIdle, StateRunning) {
		return nil, ErrAlreadyRunning
	}
	ex.log.Info("executor starting")
	go ex.runLoop()
	return &Handle{ex: ex}, nil
}

// Join blocks until the loop has fully drained (StateTerminated), or ctx
// is cancelled first.
func (h *Handle) Join(ctx context.Context) error {
	select {
	case <-h.ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach releases the caller without waiting; the loop continues running
// to completion in the background.
func (h *Handle) Detach() {}

// RequestStop signals the loop to terminate once its ready queue drains and
// no outstanding wakers remain (spec.md §4.1 "The loop terminates when the
// queue is empty AND no outstanding wakers exist AND the handle is
// signalled to stop").
func (h *Handle) RequestStop() {
	h.ex.stopRequest.Store(true)
	h.ex.wakeLoop()
}

// RunToCompletion drives the loop on the calling goroutine until its queue
// is empty, without spawning a background goroutine. It is used as a
// pre-destruction flush (spec.md §4.1). It returns ErrReentrantRun while
// any loop of this Executor is active (a Start'd loop or another
// RunToCompletion call), whichever goroutine it is called from.
func (ex *Executor) RunToCompletion() error {
	if ex.isLoopThread() {
		return ErrReentrantRun
	}
	if !ex.state.CAS(StateIdle, StateRunning) {
		if ex.state.Load() != StateRunning {
			return ErrTerminated
		}
	}
	ex.markLoopThread()
	defer ex.clearLoopThread()
	for {
		progressed := ex.drainReady()
		if !progressed && ex.readyEmpty() && ex.outstanding.Load() == 0 {
			return nil
		}
		if !progressed && ex.readyEmpty() {
			// Outstanding wakers exist but nothing is ready yet; a
			// synchronous flush cannot wait for external wakeups, so it
			// returns rather than spinning (callers needing that use
			// Start + Handle.Join instead).
			return nil
		}
	}
}

// Enqueue transfers ownership of fut to the Executor (spec.md §4.1
// "Enqueue future"). It returns a proxy Future that resolves once the
// Executor completes fut, and is safe to call both from outside the loop
// goroutine (bridging in a new root task) and from within it (spec.md §5
// Reentrancy: a constructor may spawn further futures, drained within the
// same turn).
func Enqueue[T any](ex *Executor, fut Future[T], dataCleanup func(), resultCleanup func(T)) Future[T] {
	t := &task{
		id:  ex.nextID.Add(1),
		fut: eraseFuture(recoverFuture(fut)),
	}
	t.cleanupData = dataCleanup
	if resultCleanup != nil {
		t.cleanupResult = func(v any) {
			tv, _ := v.(T)
			resultCleanup(tv)
		}
	}
	t.waker = newWaker(func() { ex.scheduleTask(t) })
	t.reschedule = func() { ex.scheduleTask(t) }
	ex.outstanding.Add(1)
	ex.scheduleTask(t)
	return &enqueuedFuture[T]{ex: ex, t: t}
}

// enqueuedFuture is the proxy returned by Enqueue; polling it observes the
// underlying task's resolution without re-driving the inner future
// directly (only the Executor's loop goroutine does that).
type enqueuedFuture[T any] struct {
	ex *Executor
	t  *task
}

func (p *enqueuedFuture[T]) Poll(w *Waker) (T, bool, error) {
	var zero T
	if !p.t.resultReady.Load() {
		// The caller's waker is not wired to the task directly (the task
		// has its own waker driving Executor re-scheduling); instead the
		// caller must poll again after being woken by whatever drives
		// its own task loop. We register a lightweight bridge: the
		// caller's waker is added as an observer on the task and is woken
		// when the inner future resolves or is cancelled.
		p.t.addObserver(w)
		return zero, false, nil
	}
	if !p.t.markConsumed() {
		return zero, true, ErrPolledAfterReady
	}
	v, _ := p.t.result.(T)
	return v, true, p.t.err
}

// Deinit cancels the underlying task if it has not yet resolved, and runs
// its result cleanup if a result was produced but never consumed (spec.md
// §4.1 Cancellation: "The result cleanup runs if a result was produced but
// not consumed").
func (p *enqueuedFuture[T]) Deinit() {
	if p.t.resultReady.Load() {
		if p.t.markConsumed() && p.t.cleanupResult != nil {
			p.t.cleanupResult(p.t.result)
		}
		return
	}
	p.t.cancel()
}

// addObserver lets a second waker (the poller of the enqueuedFuture proxy)
// be notified alongside the task's own internal waker.
func (t *task) addObserver(w *Waker) {
	t.observersMu.Lock()
	t.observers = append(t.observers, w)
	t.observersMu.Unlock()
}

func (t *task) notifyObservers() {
	t.observersMu.Lock()
	obs := t.observers
	t.observers = nil
	t.observersMu.Unlock()
	for _, w := range obs {
		w.Wake()
	}
}

func (ex *Executor) scheduleTask(t *task) {
	if !t.queued.CompareAndSwap(false, true) {
		return // already sitting in the ready queue; wake coalesced
	}
	ex.mu.Lock()
	ex.readyHead = append(ex.readyHead, t)
	ex.mu.Unlock()
	ex.wakeLoop()
}

func (ex *Executor) wakeLoop() {
	select {
	case ex.wake <- struct{}{}:
	default:
	}
}

func (ex *Executor) popReady() *task {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if len(ex.readyHead) == 0 {
		return nil
	}
	t := ex.readyHead[0]
	ex.readyHead = ex.readyHead[1:]
	return t
}

func (ex *Executor) readyEmpty() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return len(ex.readyHead) == 0
}

// drainReady pops and polls every currently-ready task once. It returns
// true if at least one task was processed.
func (ex *Executor) drainReady() bool {
	processed := false
	for {
		t := ex.popReady()
		if t == nil {
			return processed
		}
		processed = true
		t.queued.Store(false)
		ex.pollTask(t)
	}
}

func (ex *Executor) pollTask(t *task) {
	if t.resultReady.Load() {
		return
	}
	if t.cancelled.Load() {
		ex.finishTask(t, nil, ErrCancelled, true)
		return
	}
	t.waker.clearPending()
	v, ready, err := t.fut.poll(t.waker)
	if !ready {
		return
	}
	ex.finishTask(t, v, err, false)
}

func (ex *Executor) finishTask(t *task, v any, err error, cancelledCleanup bool) {
	if cancelledCleanup {
		t.fut.deinit()
		if t.cleanupData != nil {
			t.cleanupData()
		}
		ex.outstanding.Add(-1)
		t.notifyObservers()
		return
	}
	t.result = v
	t.err = err
	t.resultReady.Store(true)
	ex.outstanding.Add(-1)
	t.notifyObservers()
}

func (ex *Executor) runLoop() {
	ex.markLoopThread()
	defer ex.clearLoopThread()
	for {
		ex.drainReady()
		if ex.readyEmpty() && ex.outstanding.Load() == 0 && ex.stopRequest.Load() {
			ex.state.Store(StateTerminated)
			ex.doneOnce.Do(func() { close(ex.done) })
			ex.log.Info("executor terminated")
			return
		}
		if ex.readyEmpty() {
			<-ex.wake
		}
	}
}

func (ex *Executor) markLoopThread()  { ex.loopGoroutine.Store(goroutineTag) }
func (ex *Executor) clearLoopThread() { ex.loopGoroutine.Store("") }
func (ex *Executor) isLoopThread() bool {
	v, _ := ex.loopGoroutine.Load().(string)
	return v == goroutineTag
}

// goroutineTag is a constant sentinel; this package does not need true
// goroutine-id introspection (the teacher's getGoroutineID is a
// runtime.Stack-parsing hack for diagnostics only) because every call that
// needs to know "am I on the loop?" is made synchronously from within
// runLoop/RunToCompletion's own call stack, so a simple re-entrancy flag
// suffices.
const goroutineTag = "loop"

// State reports the current lifecycle state.
func (ex *Executor) State() State { return ex.state.Load() }

// Outstanding reports the number of tasks enqueued but not yet resolved,
// for tests and diagnostics.
func (ex *Executor) Outstanding() int64 { return ex.outstanding.Load() }
