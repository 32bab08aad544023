package lifecycle

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
	"github.com/fimoengine/fimo-go/internal/symbolindex"
)

// loadState accumulates everything one LoadInstance call acquires, so that
// a failure at any step can be unwound to exactly what that attempt itself
// acquired — spec.md §4.6 step 4's per-step unwind requirements.
type loadState struct {
	deps  *Deps
	decl  *abidecl.ExportDecl
	owner string

	inst *registry.Instance
	ctx  *abidecl.LoadContext

	acquired        []edgeAcquired
	publishedStatic []abidecl.ImportKey
	dynExports      []dynExport
	dynIdx          int

	pendingCtor    executor.Future[any]
	pendingDynCtor executor.Future[any]
	privateState   any
}

// LoadInstance runs spec.md §4.6 step 4 (a–g) as a future; the success
// callback of step h is left to the caller. On success it
// resolves to the newly registered instance; on failure it resolves to a
// *coretypes.Error and every side effect this attempt made (edges,
// published exports, the constructed private state, the registry entry)
// has already been unwound.
func LoadInstance(deps *Deps, decl *abidecl.ExportDecl, owner string) executor.Future[*registry.Instance] {
	s := &loadState{deps: deps, decl: decl, owner: owner}

	states := []executor.StateFunc[loadState]{
		stateAllocate,
		stateResolveImports,
		stateRunConstructor,
		statePublishStatic,
		stateDynamicExports,
		stateRegister,
		stateStartListener,
	}
	unwind := []executor.UnwindFunc[loadState]{
		nil,
		unwindImports,
		unwindConstructor,
		unwindStatic,
		unwindDynamic,
		unwindRegister,
		nil,
	}
	return executor.NewFSM(s, states, unwind, func(s *loadState) (*registry.Instance, error) {
		return s.inst, nil
	})
}

func stateAllocate(s *loadState, w *executor.Waker) (executor.Action, error) {
	inst := registry.NewInstance(s.decl.Name)
	inst.Description = s.decl.Description
	inst.Author = s.decl.Author
	inst.License = s.decl.License
	inst.Owner = s.owner
	for _, p := range s.decl.Parameters {
		inst.InitParam(p)
	}
	for _, r := range s.decl.Resources {
		inst.Resources[r.Name] = r.Path
	}
	s.inst = inst
	s.ctx = &abidecl.LoadContext{
		InstanceName: s.decl.Name,
		Imports:      make(map[abidecl.ImportKey]any),
		Params:       make(map[string]coretypes.ParamValue),
	}
	wireReentrantOps(s.deps, s.decl.Name, s.ctx)
	inst.LoadDecl = s.decl
	inst.LoadCtx = s.ctx
	return executor.Next(), nil
}

func stateResolveImports(s *loadState, w *executor.Waker) (executor.Action, error) {
	for _, imp := range s.decl.SymbolImports {
		entry, err := s.deps.Symbols.Lookup(imp.Namespace, imp.Name, imp.Version)
		if err != nil {
			return executor.Action{}, err
		}
		exporterName, _ := entry.Instance.(string)
		exporter, ok := s.deps.Registry.Get(exporterName)
		if !ok || !exporter.TryRefStrong() {
			return executor.Action{}, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
				"exporter %q of %s::%s is no longer live", exporterName, imp.Namespace, imp.Name)
		}
		kind := depgraph.EdgeDynamic
		if imp.Static {
			kind = depgraph.EdgeStatic
		}
		if err := s.deps.DepGraph.AddEdge(s.decl.Name, exporterName, kind); err != nil {
			exporter.UnrefStrong()
			return executor.Action{}, err
		}
		s.acquired = append(s.acquired, edgeAcquired{target: exporterName, exporter: exporter, kind: kind})
		s.ctx.Imports[abidecl.ImportKey{Namespace: imp.Namespace, Name: imp.Name}] = entry.Pointer
	}

	for _, nsImp := range s.decl.NamespaceImports {
		if !s.deps.Symbols.NamespaceExists(nsImp.Namespace) {
			return executor.Action{}, coretypes.WrapError(coretypes.ErrKindUnknownSymbol, nil,
				"namespace %q has no live export", nsImp.Namespace)
		}
		kind := depgraph.EdgeDynamic
		if nsImp.Static {
			kind = depgraph.EdgeStatic
		}
		if err := s.deps.NSIncludes.AddEdge(s.decl.Name, nsImp.Namespace, kind); err != nil {
			return executor.Action{}, err
		}
		s.acquired = append(s.acquired, edgeAcquired{namespaceEdge: true, target: nsImp.Namespace, kind: kind})
	}

	for _, dep := range s.decl.StaticDependencies() {
		exporter, ok := s.deps.Registry.Get(dep)
		if !ok || !exporter.TryRefStrong() {
			return executor.Action{}, coretypes.WrapError(coretypes.ErrKindInstanceUnloaded, nil,
				"static dependency %q is not live", dep)
		}
		if err := s.deps.DepGraph.AddEdge(s.decl.Name, dep, depgraph.EdgeStatic); err != nil {
			exporter.UnrefStrong()
			return executor.Action{}, err
		}
		s.acquired = append(s.acquired, edgeAcquired{target: dep, exporter: exporter, kind: depgraph.EdgeStatic})
	}

	return executor.Next(), nil
}

func unwindImports(s *loadState) {
	for i := len(s.acquired) - 1; i >= 0; i-- {
		e := s.acquired[i]
		if e.namespaceEdge {
			s.deps.NSIncludes.RemoveEdgeForce(s.decl.Name, e.target)
			continue
		}
		s.deps.DepGraph.RemoveEdgeForce(s.decl.Name, e.target)
		if e.exporter != nil {
			e.exporter.UnrefStrong()
		}
	}
	s.acquired = nil
}

func stateRunConstructor(s *loadState, w *executor.Waker) (executor.Action, error) {
	ctor, ok := s.decl.InstanceStateConstructor()
	if !ok {
		return executor.Next(), nil
	}
	if s.pendingCtor == nil {
		s.pendingCtor = ctor(s.ctx)
	}
	v, ready, err := s.pendingCtor.Poll(w)
	if err != nil {
		return executor.Action{}, err
	}
	if !ready {
		return executor.Yield(), nil
	}
	s.privateState = v
	s.pendingCtor = nil
	return executor.Next(), nil
}

// unwindConstructor runs the instance-state destructor on whatever private
// state was successfully constructed, when a later step fails. If the
// constructor itself was the failing step, privateState is still nil and
// this is a no-op.
func unwindConstructor(s *loadState) {
	if s.privateState == nil {
		return
	}
	if destructor, ok := s.decl.InstanceStateDestructor(); ok {
		destructor(s.ctx, s.privateState)
	}
}

func statePublishStatic(s *loadState, w *executor.Waker) (executor.Action, error) {
	for _, exp := range s.decl.StaticExports {
		err := s.deps.Symbols.Publish(exp.Namespace, exp.Name, symbolindex.Entry{
			Instance: s.decl.Name, Version: exp.Version, Pointer: exp.Pointer, IsDynamic: false,
		})
		if err != nil {
			return executor.Action{}, err
		}
		s.publishedStatic = append(s.publishedStatic, abidecl.ImportKey{Namespace: exp.Namespace, Name: exp.Name})
	}
	return executor.Next(), nil
}

func unwindStatic(s *loadState) {
	for i := len(s.publishedStatic) - 1; i >= 0; i-- {
		k := s.publishedStatic[i]
		s.deps.Symbols.Retract(k.Namespace, k.Name)
	}
}

func stateDynamicExports(s *loadState, w *executor.Waker) (executor.Action, error) {
	if s.dynIdx >= len(s.decl.DynamicExports) {
		return executor.Next(), nil
	}
	exp := s.decl.DynamicExports[s.dynIdx]
	if s.pendingDynCtor == nil {
		s.pendingDynCtor = exp.Constructor(s.ctx)
	}
	v, ready, err := s.pendingDynCtor.Poll(w)
	if err != nil {
		return executor.Action{}, err
	}
	if !ready {
		return executor.Yield(), nil
	}
	if err := s.deps.Symbols.Publish(exp.Namespace, exp.Name, symbolindex.Entry{
		Instance: s.decl.Name, Version: exp.Version, Pointer: v, IsDynamic: true,
	}); err != nil {
		return executor.Action{}, err
	}
	s.dynExports = append(s.dynExports, dynExport{namespace: exp.Namespace, name: exp.Name, value: v, destructor: exp.Destructor})
	s.pendingDynCtor = nil
	s.dynIdx++
	return executor.Transition(4), nil
}

func unwindDynamic(s *loadState) {
	for i := len(s.dynExports) - 1; i >= 0; i-- {
		d := s.dynExports[i]
		s.deps.Symbols.Retract(d.namespace, d.name)
		if d.destructor != nil {
			d.destructor(d.value)
		}
	}
}

func stateRegister(s *loadState, w *executor.Waker) (executor.Action, error) {
	if err := s.deps.Registry.Register(s.inst); err != nil {
		return executor.Action{}, err
	}
	return executor.Next(), nil
}

func unwindRegister(s *loadState) {
	if cur, ok := s.deps.Registry.Get(s.decl.Name); ok && cur == s.inst {
		s.deps.Registry.Remove(s.decl.Name)
	}
}

func stateStartListener(s *loadState, w *executor.Waker) (executor.Action, error) {
	if listener, ok := s.decl.StartListener(); ok {
		if err := listener(s.ctx); err != nil {
			return executor.Action{}, err
		}
	}
	s.deps.Log.Debug("instance loaded", obslog.Str("instance", s.decl.Name))
	return executor.Return(), nil
}
