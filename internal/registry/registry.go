// Package registry implements spec.md §4.4: the mapping from instance name
// to live instance record, reference counting, and the Info/Instance
// cyclic-reference split described in spec.md §9 ("Cyclic references
// between instance and its info observer").
//
// Grounded structurally on the conceptual acquire/release/no-resurrection
// discussion in other_examples' juju worker/dependency doc.go (a shared
// resource-lifetime manager built around exactly this "strong ref prevents
// unload, once released it cannot come back" rule), and on eventloop's
// pervasive atomic counters for the concurrency-safe refcount primitives
// themselves.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/fimoengine/fimo-go/internal/coretypes"
)

// Instance is the live record for one loaded module (spec.md §3).
type Instance struct {
	Name        string
	Description string
	Author      string
	License     string
	BinaryPath  string

	ParamDecls map[string]coretypes.ParamDecl
	params     map[string]coretypes.ParamValue
	paramsMu   sync.RWMutex

	Resources map[string]string

	PrivateState any

	// LoadDecl and LoadCtx hold the *abidecl.ExportDecl and
	// *abidecl.LoadContext this instance was loaded from, stashed here (as
	// untyped fields, like PrivateState, so this package stays independent
	// of abidecl) so a later unload can be driven by name alone rather than
	// requiring the caller to keep the original declaration around.
	LoadDecl any
	LoadCtx  any

	handle           atomic.Int64
	strong           atomic.Int64
	markedUnloadable atomic.Bool

	// Owner is the instance (by name) that staged this module, or "" for
	// a root-owned module. Used only for diagnostics/back-reference.
	Owner string
}

// NewInstance constructs an Instance with an initial strong count of 1
// (the owning instance's self-reference, spec.md §4.4).
func NewInstance(name string) *Instance {
	inst := &Instance{
		Name:       name,
		ParamDecls: make(map[string]coretypes.ParamDecl),
		params:     make(map[string]coretypes.ParamValue),
		Resources:  make(map[string]string),
	}
	inst.strong.Store(1)
	return inst
}

// StrongCount reports the current strong refcount.
func (inst *Instance) StrongCount() int64 { return inst.strong.Load() }

// HandleCount reports the current handle (observer) refcount.
func (inst *Instance) HandleCount() int64 { return inst.handle.Load() }

// TryRefStrong attempts to acquire a strong reference. It fails (returns
// false) once the strong count has reached zero, even if a concurrent
// caller is in the middle of releasing the last reference — this is what
// prevents resurrection after mark-unloadable's self-ref release reaches
// zero (spec.md §4.4).
func (inst *Instance) TryRefStrong() bool {
	for {
		cur := inst.strong.Load()
		if cur <= 0 {
			return false
		}
		if inst.strong.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// UnrefStrong releases a strong reference, returning true if this call
// brought the count to zero (the instance is now eligible for pruning).
func (inst *Instance) UnrefStrong() bool {
	v := inst.strong.Add(-1)
	return v == 0
}

// MarkUnloadable releases the instance's self-strong-ref exactly once.
// Subsequent calls are no-ops. Returns true if this call brought the
// strong count to zero.
func (inst *Instance) MarkUnloadable() bool {
	if !inst.markedUnloadable.CompareAndSwap(false, true) {
		return false
	}
	return inst.UnrefStrong()
}

// MarkedUnloadable reports whether MarkUnloadable has been called.
func (inst *Instance) MarkedUnloadable() bool { return inst.markedUnloadable.Load() }

// refHandle increments the handle (observer) refcount.
func (inst *Instance) refHandle() { inst.handle.Add(1) }

// unrefHandle decrements the handle refcount.
func (inst *Instance) unrefHandle() { inst.handle.Add(-1) }

// GetParam reads a parameter's current value, with no access check (access
// checks are enforced by the caller, which knows the reader's identity —
// see fimo.Context.ReadParam).
func (inst *Instance) GetParam(name string) (coretypes.ParamValue, bool) {
	inst.paramsMu.RLock()
	defer inst.paramsMu.RUnlock()
	v, ok := inst.params[name]
	return v, ok
}

// SetParam writes a parameter's current value.
func (inst *Instance) SetParam(name string, v coretypes.ParamValue) {
	inst.paramsMu.Lock()
	defer inst.paramsMu.Unlock()
	inst.params[name] = v
}

// InitParam seeds a parameter's declaration and default value. Called once
// during load.
func (inst *Instance) InitParam(decl coretypes.ParamDecl) {
	inst.ParamDecls[decl.Name] = decl
	inst.paramsMu.Lock()
	inst.params[decl.Name] = decl.Default
	inst.paramsMu.Unlock()
}

// Info is the observer handle described in spec.md §9: it holds a weak
// back-reference to the Instance (by name, re-resolved through the
// Registry) plus the data needed to re-acquire a strong reference. The
// Instance owns no pointer back to its Info records; an Info outliving its
// Instance simply observes is-loaded=false via TryRefInstanceStrong.
type Info struct {
	name string
	reg  *Registry
}

// Name returns the observed instance's name, valid even after the
// instance itself has been unloaded.
func (i *Info) Name() string { return i.name }

// IsLoaded reports whether the observed instance is still present in the
// registry (it may still be present with strong count 0, mid-prune).
func (i *Info) IsLoaded() bool {
	_, ok := i.reg.Get(i.name)
	return ok
}

// TryRefInstanceStrong re-acquires a strong reference to the observed
// instance, if it is still loaded and not fully released.
func (i *Info) TryRefInstanceStrong() (*Instance, bool) {
	inst, ok := i.reg.Get(i.name)
	if !ok {
		return nil, false
	}
	if !inst.TryRefStrong() {
		return nil, false
	}
	return inst, true
}

// Release drops this Info's handle refcount on the underlying instance, if
// it is still loaded.
func (i *Info) Release() {
	if inst, ok := i.reg.Get(i.name); ok {
		inst.unrefHandle()
	}
}

// Registry is the Instance Registry of spec.md §4.4: a mapping from
// instance name to live instance record, confined to the Executor's
// single thread (no internal synchronization beyond what the atomic
// refcounts themselves need for access from external threads per spec.md
// §5).
type Registry struct {
	instances map[string]*Instance
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Register inserts inst under its name. Insertion is exclusive: it fails
// with ErrDuplicateName if the name is already present.
func (r *Registry) Register(inst *Instance) error {
	if _, exists := r.instances[inst.Name]; exists {
		return coretypes.WrapError(coretypes.ErrKindDuplicateName, nil,
			"instance %q already registered", inst.Name)
	}
	r.instances[inst.Name] = inst
	return nil
}

// Get looks up an instance by name.
func (r *Registry) Get(name string) (*Instance, bool) {
	inst, ok := r.instances[name]
	return inst, ok
}

// Remove deletes an instance record from the registry. Called once an
// instance has been fully torn down (spec.md §4.7 step 7, "Free the
// record").
func (r *Registry) Remove(name string) {
	delete(r.instances, name)
}

// Len reports how many instances are currently registered.
func (r *Registry) Len() int { return len(r.instances) }

// Names returns every registered instance name, in unspecified order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.instances))
	for name := range r.instances {
		out = append(out, name)
	}
	return out
}

// NewInfo creates an observer handle for inst, incrementing its handle
// refcount (spec.md §4.4 "ref/unref" governs the Info's lifetime).
func (r *Registry) NewInfo(inst *Instance) *Info {
	inst.refHandle()
	return &Info{name: inst.Name, reg: r}
}

// Prunable returns every registered instance whose strong refcount has
// reached zero — candidates for the prune pass of spec.md §4.4. The
// caller (internal/lifecycle) is responsible for actually tearing them
// down and removing them, in reverse topological order of the dependency
// graph.
func (r *Registry) Prunable() []*Instance {
	var out []*Instance
	for _, inst := range r.instances {
		if inst.StrongCount() <= 0 {
			out = append(out, inst)
		}
	}
	return out
}
