package lifecycle

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
)

// unloadState drives the seven-step unload sequence of spec.md §4.7.
type unloadState struct {
	deps *Deps
	decl *abidecl.ExportDecl
	inst *registry.Instance
	ctx  *abidecl.LoadContext
}

// UnloadInstance runs spec.md §4.7's irreversible unload sequence as a
// future. It assumes inst has already been marked unloadable (or its
// owning loading set dropped) and its strong refcount has reached zero —
// the caller (the prune pass) is responsible for that precondition; this
// function only performs the teardown steps themselves. ctx carries the
// same import bindings the instance was loaded with, so its stop-event
// listener sees the same view its start-event listener did.
func UnloadInstance(deps *Deps, decl *abidecl.ExportDecl, inst *registry.Instance, ctx *abidecl.LoadContext) executor.Future[struct{}] {
	s := &unloadState{deps: deps, decl: decl, inst: inst, ctx: ctx}

	states := []executor.StateFunc[unloadState]{
		stateStopListener,
		stateDestroyDynamicExports,
		stateRetractExports,
		stateReleaseDependencies,
		stateRunDestructor,
		stateFreeResources,
		stateFreeRecord,
	}
	return executor.NewFSM(s, states, nil, func(s *unloadState) (struct{}, error) {
		return struct{}{}, nil
	})
}

func stateStopListener(s *unloadState, w *executor.Waker) (executor.Action, error) {
	if listener, ok := s.decl.StopListener(); ok {
		if err := listener(s.ctx); err != nil {
			// "no failure path; errors are logged" — spec.md §4.7 step 1.
			s.deps.Log.Warn("stop-event listener failed", obslog.Str("instance", s.decl.Name), obslog.Err(err))
		}
	}
	return executor.Next(), nil
}

// stateDestroyDynamicExports destroys each dynamic export in reverse
// construction order (spec.md §4.7 step 2), while the Symbol Index still
// holds their published pointers — retraction itself is step 3.
func stateDestroyDynamicExports(s *unloadState, w *executor.Waker) (executor.Action, error) {
	for i := len(s.decl.DynamicExports) - 1; i >= 0; i-- {
		exp := s.decl.DynamicExports[i]
		if exp.Destructor == nil {
			continue
		}
		entry, err := s.deps.Symbols.Lookup(exp.Namespace, exp.Name, exp.Version)
		if err != nil {
			continue
		}
		exp.Destructor(entry.Pointer)
	}
	return executor.Next(), nil
}

func stateRetractExports(s *unloadState, w *executor.Waker) (executor.Action, error) {
	for _, exp := range s.decl.StaticExports {
		s.deps.Symbols.Retract(exp.Namespace, exp.Name)
	}
	for _, exp := range s.decl.DynamicExports {
		s.deps.Symbols.Retract(exp.Namespace, exp.Name)
	}
	return executor.Next(), nil
}

// stateReleaseDependencies releases every dependency edge and namespace
// include this instance held, static or dynamic alike — spec.md §4.7 step
// 4: "Static dependencies and namespace includes persist for the
// instance's lifetime and are released in step 4 as part of the bulk
// drop." A target instance whose strong refcount reaches zero here is not
// unloaded inline; it becomes a candidate for the next prune pass
// (spec.md §5: "Strong-refcount transitions from 1→0 schedule a prune on
// the Executor; they are not performed inline").
func stateReleaseDependencies(s *unloadState, w *executor.Waker) (executor.Action, error) {
	for _, target := range s.deps.DepGraph.Dependencies(s.decl.Name) {
		present := s.deps.DepGraph.Query(s.decl.Name, target)
		s.deps.DepGraph.RemoveEdgeForce(s.decl.Name, target)
		if present == depgraph.Removed {
			continue
		}
		if exporter, ok := s.deps.Registry.Get(target); ok {
			exporter.UnrefStrong()
		}
	}
	for _, ns := range s.deps.NSIncludes.Dependencies(s.decl.Name) {
		s.deps.NSIncludes.RemoveEdgeForce(s.decl.Name, ns)
	}
	return executor.Next(), nil
}

func stateRunDestructor(s *unloadState, w *executor.Waker) (executor.Action, error) {
	if destructor, ok := s.decl.InstanceStateDestructor(); ok {
		destructor(s.ctx, s.inst.PrivateState)
	}
	return executor.Next(), nil
}

func stateFreeResources(s *unloadState, w *executor.Waker) (executor.Action, error) {
	s.inst.Resources = nil
	s.inst.PrivateState = nil
	return executor.Next(), nil
}

func stateFreeRecord(s *unloadState, w *executor.Waker) (executor.Action, error) {
	s.deps.Registry.Remove(s.decl.Name)
	s.deps.Log.Debug("instance unloaded", obslog.Str("instance", s.decl.Name))
	return executor.Return(), nil
}
