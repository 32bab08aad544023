package loadset

import (
	"errors"

	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/lifecycle"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
)

// commitState drives the five-pass commit algorithm of spec.md §4.6:
// Validation, Resolution, Ordering, Load, Finalization.
type commitState struct {
	ls *LoadingSet

	rejected map[string]error // name -> reason, set during Resolution
	order    []string         // topological load order, set during Ordering

	loadIdx     int
	pendingLoad executor.Future[*registry.Instance]

	loaded int
}

// Commit runs the five passes and returns a future resolving once every
// staged module has either loaded or been rejected (spec.md §4.6
// "commit"). The set transitions out of StatusBuilding immediately (a
// second concurrent Commit call is rejected, not queued — scenario S4's
// "exactly one of the two orderings" guarantee comes from the Executor
// being single-threaded, not from serializing callers here).
//
// The returned future is Enqueue'd onto the set's Executor, so dropping it
// before it resolves (calling its Deinit) cancels the commit in place:
// every callback still pending fires OnAbort and the set becomes
// StatusDismissed (spec.md §4.6 scenario S5), via dataCleanup below.
func (ls *LoadingSet) Commit() (executor.Future[struct{}], error) {
	if ls.state != StatusBuilding {
		return nil, ErrSetTerminal
	}
	ls.state = StatusCommitting

	s := &commitState{ls: ls, rejected: make(map[string]error)}
	states := []executor.StateFunc[commitState]{
		stateValidate,
		stateResolve,
		stateOrder,
		stateLoadNext,
		stateFinalize,
	}
	fut := executor.NewFSM(s, states, nil, func(s *commitState) (struct{}, error) {
		return struct{}{}, nil
	})

	aborted := false
	dataCleanup := func() {
		if aborted {
			return
		}
		aborted = true
		ls.state = StatusDismissed
		for _, name := range ls.names {
			if cb, ok := ls.callbacks[name]; ok && cb.OnAbort != nil {
				cb.OnAbort()
			}
		}
	}
	return executor.Enqueue(ls.ex, fut, dataCleanup, nil), nil
}

// stateValidate rejects structurally invalid declarations and duplicate
// exports-within-the-set up front, per spec.md §4.6 pass 1. A single
// duplicate-symbol conflict between two staged modules fails only the
// second one staged; neither duplicate is fatal to the whole commit.
func stateValidate(s *commitState, w *executor.Waker) (executor.Action, error) {
	seenExports := make(map[symbolKey]string)
	for _, name := range s.ls.names {
		m := s.ls.staged[name]
		if m == nil {
			continue
		}
		if err := m.decl.Validate(); err != nil {
			s.rejected[name] = err
			continue
		}
		for _, exp := range m.decl.StaticExports {
			k := symbolKey{exp.Namespace, exp.Name}
			if owner, dup := seenExports[k]; dup {
				s.rejected[name] = coretypes.WrapError(coretypes.ErrKindDuplicateSymbol, nil,
					"%s::%s already staged by %q", exp.Namespace, exp.Name, owner)
				break
			}
			seenExports[k] = name
		}
		for _, exp := range m.decl.DynamicExports {
			k := symbolKey{exp.Namespace, exp.Name}
			if owner, dup := seenExports[k]; dup {
				s.rejected[name] = coretypes.WrapError(coretypes.ErrKindDuplicateSymbol, nil,
					"%s::%s already staged by %q", exp.Namespace, exp.Name, owner)
				break
			}
			seenExports[k] = name
		}
	}
	return executor.Next(), nil
}

type symbolKey struct{ namespace, name string }

// stateResolve computes every staged-to-staged and staged-to-live edge,
// cascading rejection to any staged module whose import nothing — live or
// staged — can satisfy (spec.md §4.6 pass 2). Cascading runs to a
// fixpoint: rejecting one module can unsatisfy another that depended on
// one of *its* exports.
func stateResolve(s *commitState, w *executor.Waker) (executor.Action, error) {
	for {
		changed := false
		for _, name := range s.ls.names {
			if _, bad := s.rejected[name]; bad {
				continue
			}
			m := s.ls.staged[name]
			if err := checkImportsSatisfied(s, m); err != nil {
				s.rejected[name] = err
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return executor.Next(), nil
}

func checkImportsSatisfied(s *commitState, m *stagedModule) error {
	for _, imp := range m.decl.SymbolImports {
		if _, err := s.ls.deps.Symbols.Lookup(imp.Namespace, imp.Name, imp.Version); err == nil {
			continue
		}
		if s.stagedSatisfies(imp.Namespace, imp.Name, imp.Version) {
			continue
		}
		return coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
			"%s::%s has no live or staged exporter", imp.Namespace, imp.Name)
	}
	for _, dep := range m.decl.StaticDependencies() {
		if _, ok := s.ls.deps.Registry.Get(dep); ok {
			continue
		}
		if _, staged := s.ls.staged[dep]; staged {
			if _, bad := s.rejected[dep]; bad {
				return coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
					"static dependency %q was rejected", dep)
			}
			continue
		}
		return coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
			"static dependency %q is neither live nor staged", dep)
	}
	return nil
}

func (s *commitState) stagedSatisfies(namespace, name string, version coretypes.Version) bool {
	for _, n := range s.ls.names {
		if _, bad := s.rejected[n]; bad {
			continue
		}
		m := s.ls.staged[n]
		for _, exp := range m.decl.StaticExports {
			if exp.Namespace == namespace && exp.Name == name && exp.Version.Compatible(version) {
				return true
			}
		}
		for _, exp := range m.decl.DynamicExports {
			if exp.Namespace == namespace && exp.Name == name && exp.Version.Compatible(version) {
				return true
			}
		}
	}
	return false
}

// stateOrder topologically sorts the surviving staged modules by their
// staged-to-staged dependency edges (spec.md §4.6 pass 3), using the same
// graph type the live dependency graph is built from so a cycle among
// staged modules is detected identically to one at runtime. A cycle
// rejects every surviving module, not only the cycle's members, with
// ErrKindDependencyCycleStaged (non-recoverable per spec.md §7's table):
// nothing is loaded and the commit fails in stateFinalize.
func stateOrder(s *commitState, w *executor.Waker) (executor.Action, error) {
	g := depgraph.New()
	var surviving []string
	for _, name := range s.ls.names {
		if _, bad := s.rejected[name]; bad {
			continue
		}
		surviving = append(surviving, name)
	}
	for _, name := range surviving {
		m := s.ls.staged[name]
		for _, imp := range m.decl.SymbolImports {
			for _, other := range surviving {
				if other == name {
					continue
				}
				if s.exports(other, imp.Namespace, imp.Name, imp.Version) {
					_ = g.AddEdge(name, other, depgraph.EdgeDynamic)
				}
			}
		}
		for _, dep := range m.decl.StaticDependencies() {
			if _, staged := s.ls.staged[dep]; staged {
				if _, bad := s.rejected[dep]; !bad {
					_ = g.AddEdge(name, dep, depgraph.EdgeStatic)
				}
			}
		}
	}

	order, err := g.TopoOrder(surviving)
	if err != nil {
		for _, name := range surviving {
			s.rejected[name] = coretypes.WrapError(coretypes.ErrKindDependencyCycleStaged, err,
				"module %q participates in a staged dependency cycle", name)
		}
		s.order = nil
		return executor.Next(), nil
	}
	s.order = order
	return executor.Next(), nil
}

func (s *commitState) exports(name, namespace, symbol string, version coretypes.Version) bool {
	m := s.ls.staged[name]
	for _, exp := range m.decl.StaticExports {
		if exp.Namespace == namespace && exp.Name == symbol && exp.Version.Compatible(version) {
			return true
		}
	}
	for _, exp := range m.decl.DynamicExports {
		if exp.Namespace == namespace && exp.Name == symbol && exp.Version.Compatible(version) {
			return true
		}
	}
	return false
}

// stateLoadNext drives lifecycle.LoadInstance for each surviving module in
// dependency order, one at a time (spec.md §4.6 pass 4). A module whose
// load fails is recorded as rejected and the pass continues with the
// next: a constructor failure for module X never aborts the whole commit,
// though any later module depending on X's (now never-published) exports
// will in turn fail its own resolution when LoadInstance tries to look
// them up, exactly the self-cascading behavior spec.md's Load pass
// describes.
func stateLoadNext(s *commitState, w *executor.Waker) (executor.Action, error) {
	for s.loadIdx < len(s.order) {
		name := s.order[s.loadIdx]
		m := s.ls.staged[name]

		if s.pendingLoad == nil {
			s.pendingLoad = lifecycle.LoadInstance(s.ls.deps, m.decl, m.owner)
		}
		inst, ready, err := s.pendingLoad.Poll(w)
		if !ready {
			return executor.Yield(), nil
		}
		s.pendingLoad = nil
		s.loadIdx++

		cb := s.ls.callbacks[name]
		if err != nil {
			s.rejected[name] = err
			if cb != nil && cb.OnError != nil {
				cb.OnError(err)
			}
			continue
		}
		_ = inst
		s.loaded++
		if cb != nil && cb.OnSuccess != nil {
			cb.OnSuccess()
		}
	}
	return executor.Next(), nil
}

// stateFinalize fires the remaining callbacks (for modules rejected before
// ever reaching the Load pass), settles the set's terminal status, and
// fails the whole commit only if it terminated with zero successful loads
// due to a structural error — a cycle among staged modules, or a staged
// module's name colliding with one already in the live Registry (spec.md
// §4.6 pass 5). Zero loads caused only by ordinary per-module cascaded
// rejections (e.g. an unresolved import, spec.md §4.6 scenario S3) still
// resolve ok: every staged module was simply skipped, not a commit
// failure.
func stateFinalize(s *commitState, w *executor.Waker) (executor.Action, error) {
	// Modules in s.order reached the Load pass, which already reported them.
	attempted := make(map[string]bool, len(s.order))
	for _, name := range s.order {
		attempted[name] = true
	}
	var structural error
	for _, name := range s.ls.names {
		reason, bad := s.rejected[name]
		if !bad {
			continue
		}
		if cb := s.ls.callbacks[name]; cb != nil && cb.OnError != nil && !attempted[name] {
			cb.OnError(reason)
		}
		if structural == nil && isStructuralFailure(reason) {
			structural = reason
		}
	}

	if s.loaded == 0 && structural != nil {
		s.ls.state = StatusFailed
		s.ls.deps.Log.Warn("loading set commit produced zero successful loads",
			obslog.Int("staged", len(s.ls.names)))
		return executor.Action{}, structural
	}

	s.ls.state = StatusCommitted
	s.ls.deps.Log.Info("loading set committed",
		obslog.Int("loaded", s.loaded), obslog.Int("staged", len(s.ls.names)))
	return executor.Return(), nil
}

// isStructuralFailure reports whether err is one of the two structural
// reasons spec.md §4.6 pass 5 names, as opposed to an ordinary per-module
// rejection that only ever skips the affected module.
func isStructuralFailure(err error) bool {
	var e *coretypes.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == coretypes.ErrKindDependencyCycleStaged || e.Kind == coretypes.ErrKindDuplicateName
}
