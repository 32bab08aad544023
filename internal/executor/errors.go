package executor

import "errors"

// Standard errors returned by the Executor, mirroring the shape of
// eventloop's package-level sentinel errors (ErrLoopAlreadyRunning,
// ErrLoopTerminated, ErrLoopNotRunning, ErrReentrantRun).
var (
	// ErrAlreadyRunning is returned by Start when an Executor for this
	// process is already running (spec.md: "fails if one already exists").
	ErrAlreadyRunning = errors.New("executor: already running")

	// ErrTerminated is returned when an operation is attempted on an
	// Executor that has finished draining.
	ErrTerminated = errors.New("executor: terminated")

	// ErrNotRunning is returned when an operation requires a running
	// Executor but none is active.
	ErrNotRunning = errors.New("executor: not running")

	// ErrReentrantRun is returned if RunToCompletion is called from
	// within the Executor's own goroutine.
	ErrReentrantRun = errors.New("executor: cannot run to completion re-entrantly")

	// ErrCancelled is the error observed by a future whose enclosing task
	// was dropped/cancelled before it reached Ready.
	ErrCancelled = errors.New("executor: future cancelled")

	// ErrPolledAfterReady is a programmer-error sentinel: spec.md I6 says
	// polling after Ready is undefined; this package returns it rather
	// than panicking, so tests can assert on the condition.
	ErrPolledAfterReady = errors.New("executor: future polled after ready")
)
