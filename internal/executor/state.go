package executor

import "sync/atomic"

// State represents the lifecycle of an Executor's event loop.
//
// State machine (grounded on eventloop/state.go's FastState, simplified to
// the subset spec.md requires for a pure in-process cooperative scheduler —
// no Sleeping/poll-wait state is needed since there is no I/O readiness to
// block on, only an empty ready queue):
//
//	Idle -> Running        [Start, or RunToCompletion]
//	Running -> Terminated  [stop requested, queue empty, no outstanding tasks]
//
// StateDraining is defined for completeness but the Executor never enters
// it: a stop request keeps the loop in StateRunning until it can terminate.
type State uint32

const (
	// StateIdle is the state before Start has been called.
	StateIdle State = iota
	// StateRunning is the state while the loop is actively processing tasks.
	StateRunning
	// StateDraining is the state after a stop has been requested but
	// outstanding wakers or queued tasks still exist.
	StateDraining
	// StateTerminated is the terminal state; no further operations succeed.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state machine, grounded on eventloop's
// FastState: an atomic.Uint32 with CAS-guarded transitions.
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(StateIdle))
	return s
}

func (s *atomicState) Load() State { return State(s.v.Load()) }

func (s *atomicState) Store(v State) { s.v.Store(uint32(v)) }

func (s *atomicState) CAS(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
