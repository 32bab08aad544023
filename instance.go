package fimo

import (
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/lifecycle"
	"github.com/fimoengine/fimo-go/internal/registry"
)

// Info is a weak observer handle over a live instance (spec.md §4.4/§9):
// it survives the instance's unload and can be asked to re-acquire a
// strong reference, but holds no pointer back into the registry record
// itself, breaking the Instance<->Info reference cycle spec.md §9
// describes.
type Info struct {
	info *registry.Info
	deps *lifecycle.Deps
}

// Name returns the observed instance's name.
func (i *Info) Name() string { return i.info.Name() }

// IsLoaded reports whether the observed instance is still live.
func (i *Info) IsLoaded() bool { return i.info.IsLoaded() }

// Acquire re-acquires a strong reference to the observed instance, if it
// is still live, returning an Instance handle the caller must Release.
func (i *Info) Acquire() (*Instance, bool) {
	inst, ok := i.info.TryRefInstanceStrong()
	if !ok {
		return nil, false
	}
	return &Instance{inst: inst, deps: i.deps}, true
}

// Release drops this Info's handle reference.
func (i *Info) Release() { i.info.Release() }

// Instance is a strong-referenced handle to a live module instance.
// Holding one prevents the instance from unloading.
type Instance struct {
	inst *registry.Instance
	deps *lifecycle.Deps
}

// Name returns the instance's name.
func (inst *Instance) Name() string { return inst.inst.Name }

// Description, Author, and License echo the instance's export
// declaration metadata.
func (inst *Instance) Description() string { return inst.inst.Description }
func (inst *Instance) Author() string      { return inst.inst.Author }
func (inst *Instance) License() string     { return inst.inst.License }

// Release drops the strong reference this Instance holds. After Release,
// the Instance must not be used again.
func (inst *Instance) Release() { inst.inst.UnrefStrong() }

// MarkUnloadable releases this instance's own self-strong-reference,
// making it a prune-pass candidate once every other strong reference
// (its dependents' import and dependency bindings) has also been
// released — spec.md §4.4. Calling it more than once is a no-op.
func (inst *Instance) MarkUnloadable() bool { return inst.inst.MarkUnloadable() }

// Unload drives this instance's unload sequence directly (spec.md §4.7),
// without waiting for the next automatic prune pass. It fails if the
// instance still holds any strong references, including its own
// self-reference unless MarkUnloadable was already called.
func (inst *Instance) Unload() (executor.Future[struct{}], error) {
	return lifecycle.UnloadByName(inst.deps, inst.inst.Name)
}

// checkAccess reports whether reader may access a parameter declared with
// the given access group on owner, per spec.md §6: public from anywhere;
// dependency only from an instance holding a dependency edge to owner
// (or owner itself); private only from owner itself.
func checkAccess(group coretypes.AccessGroup, readerName, ownerName string, depGraph *depgraph.Graph) bool {
	switch group {
	case coretypes.AccessPublic:
		return true
	case coretypes.AccessDependency:
		if readerName == ownerName {
			return true
		}
		return depGraph.Query(readerName, ownerName) != depgraph.Removed
	case coretypes.AccessPrivate:
		return readerName == ownerName
	default:
		return false
	}
}
