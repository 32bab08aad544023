package fimo

import (
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/lifecycle"
)

// DependencyState mirrors the internal dependency-graph State for the
// public add/remove/query_dependency and namespace-include surface
// (spec.md §4.5).
type DependencyState = depgraph.State

const (
	DependencyRemoved        = depgraph.Removed
	DependencyDynamicPresent = depgraph.DynamicPresent
	DependencyStaticPresent  = depgraph.StaticPresent
)

// AddDependency implements spec.md §4.5's add_dependency(from, to): fails
// if to is not live, if from already depends on to, or if adding the
// edge would close a cycle in the live dependency graph. On success it
// adds a dynamic edge and increments to's strong refcount.
//
// A module's own constructor or event listener reaches this same
// operation reentrantly through its LoadContext (spec.md §5) rather than
// through this method, since it runs before the host ever sees the
// instance.
func (c *Context) AddDependency(from, to string) error {
	return lifecycle.AddDependency(c.deps, from, to)
}

// RemoveDependency implements remove_dependency(from, to): fails if the
// edge does not exist or is static.
func (c *Context) RemoveDependency(from, to string) error {
	return lifecycle.RemoveDependency(c.deps, from, to)
}

// QueryDependency reports the current state of the dependency edge from
// -> to.
func (c *Context) QueryDependency(from, to string) DependencyState {
	return lifecycle.QueryDependency(c.deps, from, to)
}

// AddNamespaceInclude, RemoveNamespaceInclude, and QueryNamespaceInclude
// mirror the dependency operations above over namespace includes
// (spec.md §4.5: "Namespace includes are represented identically ... the
// same add/remove/query operations apply").
func (c *Context) AddNamespaceInclude(instance, namespace string) error {
	return lifecycle.AddNamespaceInclude(c.deps, instance, namespace)
}

func (c *Context) RemoveNamespaceInclude(instance, namespace string) error {
	return lifecycle.RemoveNamespaceInclude(c.deps, instance, namespace)
}

func (c *Context) QueryNamespaceInclude(instance, namespace string) DependencyState {
	return lifecycle.QueryNamespaceInclude(c.deps, instance, namespace)
}
