// Package executor implements the single-threaded cooperative scheduler
// (spec.md §4.1) and the uniform Future poll/waker protocol it drives
// (spec.md §4.2). Both live in one package, mirroring the teacher
// (eventloop) housing its Loop and its Promise/ChainedPromise together.
package executor

import "fmt"

// Future is any value offering a poll(waker) -> Ready(T) | Pending
// operation (spec.md §4.2). Poll must not be called again after it has
// returned ready=true (spec.md I6); implementations are free to return
// ErrPolledAfterReady rather than panic, and this package's combinators do
// so defensively.
//
// The poller borrows waker for the duration of the call; a Future that
// needs to hold it across a Pending return must call waker.Clone()
// (spec.md §4.2, "Waker discipline").
type Future[T any] interface {
	Poll(waker *Waker) (value T, ready bool, err error)
}

// Deiniter is implemented by futures exposing the optional idempotent
// deinit operation of spec.md §4.2, used to abort in-progress work and
// release resources on a cancellation path.
type Deiniter interface {
	Deinit()
}

// readyFuture is the Ready(v) combinator: it yields v exactly once.
type readyFuture[T any] struct {
	value  T
	err    error
	polled bool
}

// Ready returns a Future that is immediately ready with value v.
func Ready[T any](v T) Future[T] {
	return &readyFuture[T]{value: v}
}

// ReadyErr returns a Future that is immediately ready with an error.
func ReadyErr[T any](err error) Future[T] {
	var zero T
	return &readyFuture[T]{value: zero, err: err}
}

func (r *readyFuture[T]) Poll(*Waker) (T, bool, error) {
	if r.polled {
		var zero T
		return zero, true, ErrPolledAfterReady
	}
	r.polled = true
	return r.value, true, r.err
}

// mapFuture is the Map(fut, f) combinator: polls fut, and on Ready(v)
// returns Ready(f(v)).
type mapFuture[T, U any] struct {
	inner Future[T]
	f     func(T) (U, error)
	done  bool
}

// MapFuture transforms the eventual result of fut with f. If fut resolves
// to an error, f is not called and the error propagates.
func MapFuture[T, U any](fut Future[T], f func(T) (U, error)) Future[U] {
	return &mapFuture[T, U]{inner: fut, f: f}
}

func (m *mapFuture[T, U]) Poll(w *Waker) (U, bool, error) {
	var zero U
	if m.done {
		return zero, true, ErrPolledAfterReady
	}
	v, ready, err := m.inner.Poll(w)
	if !ready {
		return zero, false, nil
	}
	m.done = true
	if err != nil {
		return zero, true, err
	}
	out, ferr := m.f(v)
	return out, true, ferr
}

// Deinit releases the inner future if it supports deinitialization.
func (m *mapFuture[T, U]) Deinit() {
	if d, ok := m.inner.(Deiniter); ok {
		d.Deinit()
	}
}

// AndThen chains fut into a second future produced from its result,
// equivalent to flattening a MapFuture that itself returns a Future.
type andThenFuture[T, U any] struct {
	inner Future[T]
	next  func(T) (Future[U], error)
	nextF Future[U]
	done  bool
}

// AndThen sequences fut, then uses its result to build and drive a second
// future. The FSM and loadset's commit pipeline do not use it; they
// sequence their steps through FSM states.
func AndThen[T, U any](fut Future[T], next func(T) (Future[U], error)) Future[U] {
	return &andThenFuture[T, U]{inner: fut, next: next}
}

func (a *andThenFuture[T, U]) Poll(w *Waker) (U, bool, error) {
	var zero U
	if a.done {
		return zero, true, ErrPolledAfterReady
	}
	if a.nextF == nil {
		v, ready, err := a.inner.Poll(w)
		if !ready {
			return zero, false, nil
		}
		if err != nil {
			a.done = true
			return zero, true, err
		}
		nf, nerr := a.next(v)
		if nerr != nil {
			a.done = true
			return zero, true, nerr
		}
		a.nextF = nf
	}
	out, ready, err := a.nextF.Poll(w)
	if ready {
		a.done = true
	}
	return out, ready, err
}

func (a *andThenFuture[T, U]) Deinit() {
	if a.nextF != nil {
		if d, ok := a.nextF.(Deiniter); ok {
			d.Deinit()
		}
	} else if d, ok := a.inner.(Deiniter); ok {
		d.Deinit()
	}
}

// erasedFuture type-erases a Future[T] into the homogeneous representation
// the Executor's ready queue stores (spec.md's Task: "an enqueued future
// plus its result buffer"). This is the Go analogue of boxing a future as
// a trait object.
type erasedFuture interface {
	poll(w *Waker) (value any, ready bool, err error)
	deinit()
}

type erasedAdapter[T any] struct {
	fut Future[T]
}

func eraseFuture[T any](fut Future[T]) erasedFuture {
	return &erasedAdapter[T]{fut: fut}
}

func (e *erasedAdapter[T]) poll(w *Waker) (any, bool, error) {
	v, ready, err := e.fut.Poll(w)
	return v, ready, err
}

func (e *erasedAdapter[T]) deinit() {
	if d, ok := e.fut.(Deiniter); ok {
		d.Deinit()
	}
}

// panicRecoveringFuture guards a Poll call with recover(), converting a
// panic into an error, matching eventloop/loop.go's safeExecute /
// safeExecuteFn pattern of never letting a single task's panic take down
// the whole loop.
type panicRecoveringFuture[T any] struct {
	inner Future[T]
}

func recoverFuture[T any](fut Future[T]) Future[T] {
	return &panicRecoveringFuture[T]{inner: fut}
}

func (p *panicRecoveringFuture[T]) Poll(w *Waker) (value T, ready bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, ready, err = zero, true, fmt.Errorf("executor: future panicked: %v", r)
		}
	}()
	return p.inner.Poll(w)
}

func (p *panicRecoveringFuture[T]) Deinit() {
	if d, ok := p.inner.(Deiniter); ok {
		d.Deinit()
	}
}
