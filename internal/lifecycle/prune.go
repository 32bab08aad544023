package lifecycle

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/obslog"
)

// UnloadByName drives the unload sequence for the named live instance,
// using the declaration and load context stashed on its registry record
// at load time (stateAllocate). It fails without touching anything if the
// instance still holds strong references — a caller must mark-unloadable
// and wait for every other strong reference to drop first (or route
// through Prune), per spec.md §4.4 and §4.7.
func UnloadByName(deps *Deps, name string) (executor.Future[struct{}], error) {
	inst, ok := deps.Registry.Get(name)
	if !ok {
		return nil, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
			"instance %q is not loaded", name)
	}
	if inst.StrongCount() > 0 {
		return nil, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
			"instance %q still has %d strong references", name, inst.StrongCount())
	}
	decl, ok := inst.LoadDecl.(*abidecl.ExportDecl)
	if !ok {
		return nil, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
			"instance %q has no recorded load declaration", name)
	}
	ctx, _ := inst.LoadCtx.(*abidecl.LoadContext)
	return UnloadInstance(deps, decl, inst, ctx), nil
}

// pruneState drives the automatic prune pass of spec.md §4.4: repeatedly
// gather whatever is currently prunable and hasn't been visited yet,
// order it so a dependent is destroyed before anything it still depends
// on, and unload it. Unloading one instance can bring another's strong
// refcount to zero (releasing the first instance's own dependency edges,
// spec.md §4.7 step 4), so the pass keeps re-deriving its batch until a
// derivation turns up nothing new, rather than freezing the candidate set
// up front.
type pruneState struct {
	deps *Deps
	done map[string]bool

	order []string
	idx   int

	pending executor.Future[struct{}]
	count   int
}

// Prune runs the prune pass as a future resolving to the number of
// instances it destroyed. It resolves immediately to 0 if nothing is
// prunable. A strong refcount 1->0 transition never triggers this pass by
// itself (spec.md §5: "not performed inline") — a caller (fimo.Context)
// decides when to pump it.
func Prune(deps *Deps) executor.Future[int] {
	s := &pruneState{deps: deps, done: make(map[string]bool)}
	states := []executor.StateFunc[pruneState]{statePruneStep}
	return executor.NewFSM(s, states, nil, func(s *pruneState) (int, error) {
		return s.count, nil
	})
}

func statePruneStep(s *pruneState, w *executor.Waker) (executor.Action, error) {
	for {
		if s.pending != nil {
			_, ready, err := s.pending.Poll(w)
			if !ready {
				return executor.Yield(), nil
			}
			s.pending = nil
			if err != nil {
				s.deps.Log.Warn("prune pass failed to unload instance", obslog.Err(err))
			} else {
				s.count++
			}
			continue
		}

		if s.idx >= len(s.order) {
			s.order = s.nextBatch()
			s.idx = 0
			if len(s.order) == 0 {
				return executor.Return(), nil
			}
		}

		name := s.order[s.idx]
		s.idx++
		s.done[name] = true

		inst, ok := s.deps.Registry.Get(name)
		if !ok || inst.StrongCount() > 0 {
			continue
		}
		decl, declOK := inst.LoadDecl.(*abidecl.ExportDecl)
		if !declOK {
			continue
		}
		ctx, _ := inst.LoadCtx.(*abidecl.LoadContext)
		s.pending = UnloadInstance(s.deps, decl, inst, ctx)
	}
}

// nextBatch derives a destroy order over whatever is currently prunable
// and not yet visited: a topological sort of the live dependency graph
// restricted to that subset, reversed so a dependent comes before what it
// depends on.
func (s *pruneState) nextBatch() []string {
	var names []string
	for _, inst := range s.deps.Registry.Prunable() {
		if !s.done[inst.Name] {
			names = append(names, inst.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	g := depgraph.New()
	for _, n := range names {
		for _, dep := range s.deps.DepGraph.Dependencies(n) {
			_ = g.AddEdge(n, dep, depgraph.EdgeDynamic)
		}
	}
	order, err := g.TopoOrder(names)
	if err != nil {
		// stateReleaseDependencies never leaves a cycle among zero-refcount
		// instances; fall back to registry order so the pass still makes
		// progress rather than stalling.
		order = names
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
