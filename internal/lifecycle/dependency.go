package lifecycle

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
)

// AddDependency implements spec.md §4.5's add_dependency(from, to): fails
// if to is not live, if from already depends on to, or if to already
// (transitively) depends on from (a cycle). On success it adds a dynamic
// edge and increments to's strong refcount, keeping it alive for as long
// as from's dependency on it exists.
//
// from is not itself required to already be registered: a module's own
// constructor runs before its instance is inserted into the Registry
// (stateRunConstructor precedes stateRegister), and spec.md §5 still
// requires add_dependency to be reachable from inside it.
func AddDependency(deps *Deps, from, to string) error {
	target, ok := deps.Registry.Get(to)
	if !ok || !target.TryRefStrong() {
		return coretypes.WrapError(coretypes.ErrKindDependencyCycleLive, nil,
			"add_dependency(%q, %q) rejected: %q is not live", from, to, to)
	}
	if err := deps.DepGraph.AddEdge(from, to, depgraph.EdgeDynamic); err != nil {
		target.UnrefStrong()
		return coretypes.WrapError(coretypes.ErrKindDependencyCycleLive, err,
			"add_dependency(%q, %q) rejected", from, to)
	}
	return nil
}

// RemoveDependency implements spec.md §4.5's remove_dependency(from, to):
// fails if the edge does not exist or is static. On success it removes
// the dynamic edge and decrements to's strong refcount; the target is not
// torn down inline even if this brings its refcount to zero (spec.md §5
// — pruning happens on a later, separate pass).
func RemoveDependency(deps *Deps, from, to string) error {
	if err := deps.DepGraph.RemoveEdge(from, to); err != nil {
		return coretypes.WrapError(coretypes.ErrKindDependencyCycleLive, err,
			"remove_dependency(%q, %q) rejected", from, to)
	}
	if target, ok := deps.Registry.Get(to); ok {
		target.UnrefStrong()
	}
	return nil
}

// QueryDependency reports the current state of the dependency edge from
// -> to.
func QueryDependency(deps *Deps, from, to string) depgraph.State {
	return deps.DepGraph.Query(from, to)
}

// AddNamespaceInclude, RemoveNamespaceInclude, and QueryNamespaceInclude
// mirror the dependency operations above over deps.NSIncludes, per
// spec.md §4.5 ("Namespace includes are represented identically ... the
// same add/remove/query operations apply"). A namespace has no Registry
// entry to strong-ref, so these never touch a refcount.
func AddNamespaceInclude(deps *Deps, instance, namespace string) error {
	if err := deps.NSIncludes.AddEdge(instance, namespace, depgraph.EdgeDynamic); err != nil {
		return coretypes.WrapError(coretypes.ErrKindDependencyCycleLive, err,
			"namespace include %q for %q rejected", namespace, instance)
	}
	return nil
}

func RemoveNamespaceInclude(deps *Deps, instance, namespace string) error {
	if err := deps.NSIncludes.RemoveEdge(instance, namespace); err != nil {
		return coretypes.WrapError(coretypes.ErrKindDependencyCycleLive, err,
			"namespace include %q for %q rejected", namespace, instance)
	}
	return nil
}

func QueryNamespaceInclude(deps *Deps, instance, namespace string) depgraph.State {
	return deps.NSIncludes.Query(instance, namespace)
}

// wireReentrantOps binds ctx's dependency/namespace-include closures to
// name, giving a constructor or event listener running with ctx the same
// add_dependency/remove_dependency/namespace-include surface a host
// caller reaches through fimo.Context (spec.md §5's reentrancy rule).
func wireReentrantOps(deps *Deps, name string, ctx *abidecl.LoadContext) {
	ctx.AddDependency = func(to string) error { return AddDependency(deps, name, to) }
	ctx.RemoveDependency = func(to string) error { return RemoveDependency(deps, name, to) }
	ctx.QueryDependency = func(to string) depgraph.State { return QueryDependency(deps, name, to) }
	ctx.AddNamespaceInclude = func(namespace string) error { return AddNamespaceInclude(deps, name, namespace) }
	ctx.RemoveNamespaceInclude = func(namespace string) error { return RemoveNamespaceInclude(deps, name, namespace) }
	ctx.QueryNamespaceInclude = func(namespace string) depgraph.State { return QueryNamespaceInclude(deps, name, namespace) }
}
