// Package abidecl models the module binary contract of SPEC_FULL.md §6: the
// fixed-header export declaration plus its six array-with-count fields, and
// the tagged modifier list. No linker-section scanning is attempted (the
// "iterator over exports" is always a supplied function value — see
// loadset.DiscoverFunc and the root fimo package's ExportsFromPlugin); this
// package only models the shape a discovered declaration must have once
// found.
//
// Grounded on no single teacher file (the teacher has no binary-contract
// concept at all); the array-of-structs-plus-modifier-list layout is taken
// directly from spec.md §6's own prose and expressed the way the teacher
// expresses fixed records elsewhere — plain exported struct fields, no
// builder type, construction via composite literals.
package abidecl

import (
	"fmt"
	"strings"

	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
)

// Linkage distinguishes a globally-visible export from one unique to its
// importer (spec.md §3 "linkage (global/unique)").
type Linkage int

const (
	LinkageGlobal Linkage = iota
	LinkageUnique
)

// LoadContext is passed to every constructor/listener function declared by
// a module: its resolved imports, its own parameter table, and its own
// name. It is built by internal/lifecycle during the Load pass (spec.md
// §4.6 step 4) and is not itself part of the binary contract.
//
// The AddDependency/RemoveDependency/QueryDependency and
// AddNamespaceInclude/RemoveNamespaceInclude/QueryNamespaceInclude fields
// are closures bound by internal/lifecycle to this instance's own name,
// giving a constructor or event listener the same add_dependency/
// remove_dependency/namespace-include surface a host caller reaches
// through fimo.Context — spec.md §5's reentrancy rule ("a module's
// constructor may call add_dependency...") needs the instance's own
// identity threaded through, which only the LoadContext that was built
// for it carries. internal/lifecycle sets them when it builds the context
// and they stay set for as long as the context is kept; a LoadContext
// built any other way leaves them nil.
type LoadContext struct {
	InstanceName string
	Imports      map[ImportKey]any
	Params       map[string]coretypes.ParamValue

	AddDependency    func(to string) error
	RemoveDependency func(to string) error
	QueryDependency  func(to string) depgraph.State

	AddNamespaceInclude    func(namespace string) error
	RemoveNamespaceInclude func(namespace string) error
	QueryNamespaceInclude  func(namespace string) depgraph.State
}

// ImportKey identifies a bound import by (namespace, name).
type ImportKey struct {
	Namespace string
	Name      string
}

// Import looks up a previously bound import pointer.
func (c *LoadContext) Import(namespace, name string) (any, bool) {
	v, ok := c.Imports[ImportKey{Namespace: namespace, Name: name}]
	return v, ok
}

// InstanceConstructor runs an instance's instance-state constructor as a
// future (spec.md §4.6 step 4c); its Ready value becomes the instance's
// PrivateState.
type InstanceConstructor func(ctx *LoadContext) executor.Future[any]

// InstanceDestructor runs synchronously with the instance's private state
// (spec.md §4.7 step 5); it has no failure path.
type InstanceDestructor func(ctx *LoadContext, state any)

// DynamicExportConstructor produces one dynamic export's value as a future
// (spec.md §4.6 step 4e).
type DynamicExportConstructor func(ctx *LoadContext) executor.Future[any]

// DynamicExportDestructor tears down one dynamic export's value in reverse
// construction order (spec.md §4.7 step 2); no failure path.
type DynamicExportDestructor func(value any)

// EventListener is the start-event listener (may fail, spec.md §4.6 step
// 4g) or stop-event listener (spec.md §4.7 step 1, "no failure path;
// errors are logged" — modeled as a normal error return that the caller
// logs rather than propagates).
type EventListener func(ctx *LoadContext) error

// ResourceDecl is a relative path (it must not begin with `/`) resolved against the module's
// binary directory at load time (spec.md §6 "Resources").
type ResourceDecl struct {
	Name string
	Path string
}

// NamespaceImportDecl declares that the owning instance includes namespace,
// as a static or dynamic include (spec.md §4.5 "Namespace includes").
type NamespaceImportDecl struct {
	Namespace string
	Static    bool
}

// SymbolImportDecl declares a required (namespace, name, version) import
// binding (spec.md §3 "Import binding").
type SymbolImportDecl struct {
	Namespace string
	Name      string
	Version   coretypes.Version
	Static    bool
}

// StaticExportDecl declares a symbol whose value is known at load time
// (spec.md §3 "a static pointer").
type StaticExportDecl struct {
	Namespace string
	Name      string
	Version   coretypes.Version
	Linkage   Linkage
	Pointer   any
}

// DynamicExportDecl declares a symbol produced by a constructor/destructor
// pair at load time (spec.md §3 "a constructor/destructor pair (dynamic)").
type DynamicExportDecl struct {
	Namespace   string
	Name        string
	Version     coretypes.Version
	Linkage     Linkage
	Constructor DynamicExportConstructor
	Destructor  DynamicExportDestructor
}

// ModifierKind enumerates the closed set of tagged modifiers spec.md §6
// names: "destructor hook, static dependency, debug-info constructor,
// instance-state constructor/destructor, start-event listener, stop-event
// listener." Any value outside this set fails validation — "forward
// compatibility is opt-in by version negotiation, not by silent skip."
type ModifierKind int

const (
	ModifierDestructorHook ModifierKind = iota
	ModifierStaticDependency
	ModifierDebugInfoConstructor
	ModifierInstanceStateConstructor
	ModifierInstanceStateDestructor
	ModifierStartEventListener
	ModifierStopEventListener

	modifierKindCount
)

// Modifier is one tagged key/value entry of a module's modifier list.
type Modifier struct {
	Kind  ModifierKind
	Value any
}

func DestructorHook(fn func()) Modifier {
	return Modifier{Kind: ModifierDestructorHook, Value: fn}
}

func StaticDependency(targetInstance string) Modifier {
	return Modifier{Kind: ModifierStaticDependency, Value: targetInstance}
}

func DebugInfoConstructor(fn func() any) Modifier {
	return Modifier{Kind: ModifierDebugInfoConstructor, Value: fn}
}

func InstanceStateConstructor(fn InstanceConstructor) Modifier {
	return Modifier{Kind: ModifierInstanceStateConstructor, Value: fn}
}

func InstanceStateDestructor(fn InstanceDestructor) Modifier {
	return Modifier{Kind: ModifierInstanceStateDestructor, Value: fn}
}

func StartEventListener(fn EventListener) Modifier {
	return Modifier{Kind: ModifierStartEventListener, Value: fn}
}

func StopEventListener(fn EventListener) Modifier {
	return Modifier{Kind: ModifierStopEventListener, Value: fn}
}

// ExportDecl is the fixed-header export declaration described in spec.md
// §6: name/description/author/license, the version of the subsystem the
// module was compiled against, and the six array-with-count fields in
// fixed order.
type ExportDecl struct {
	Name             string
	Description      string
	Author           string
	License          string
	SubsystemVersion coretypes.Version

	Parameters       []coretypes.ParamDecl
	Resources        []ResourceDecl
	NamespaceImports []NamespaceImportDecl
	SymbolImports    []SymbolImportDecl
	StaticExports    []StaticExportDecl
	DynamicExports   []DynamicExportDecl
	Modifiers        []Modifier
}

// Validate checks that every modifier carries a known kind with a
// value of the expected type, per spec.md §6's "unknown modifier keys must
// fail the load with a clear error" requirement.
func (d *ExportDecl) Validate() error {
	for _, m := range d.Modifiers {
		if m.Kind < 0 || m.Kind >= modifierKindCount {
			return coretypes.WrapError(coretypes.ErrKindInvalidModifier, nil,
				"module %q: unknown modifier kind %d", d.Name, m.Kind)
		}
		if !modifierValueOK(m) {
			return coretypes.WrapError(coretypes.ErrKindInvalidModifier, nil,
				"module %q: modifier %v has wrong value type", d.Name, m.Kind)
		}
	}
	for _, r := range d.Resources {
		if strings.HasPrefix(r.Path, "/") {
			return coretypes.WrapError(coretypes.ErrKindInvalidModifier, nil,
				"module %q: resource %q path %q must not begin with '/'", d.Name, r.Name, r.Path)
		}
	}
	return nil
}

func modifierValueOK(m Modifier) bool {
	switch m.Kind {
	case ModifierDestructorHook:
		_, ok := m.Value.(func())
		return ok
	case ModifierStaticDependency:
		_, ok := m.Value.(string)
		return ok
	case ModifierDebugInfoConstructor:
		_, ok := m.Value.(func() any)
		return ok
	case ModifierInstanceStateConstructor:
		_, ok := m.Value.(InstanceConstructor)
		return ok
	case ModifierInstanceStateDestructor:
		_, ok := m.Value.(InstanceDestructor)
		return ok
	case ModifierStartEventListener, ModifierStopEventListener:
		_, ok := m.Value.(EventListener)
		return ok
	default:
		return false
	}
}

// StaticDependencies returns the instance names declared via
// StaticDependency modifiers, in declaration order.
func (d *ExportDecl) StaticDependencies() []string {
	var out []string
	for _, m := range d.Modifiers {
		if m.Kind == ModifierStaticDependency {
			out = append(out, m.Value.(string))
		}
	}
	return out
}

// DestructorHooks returns every plain destructor-hook function declared.
func (d *ExportDecl) DestructorHooks() []func() {
	var out []func()
	for _, m := range d.Modifiers {
		if m.Kind == ModifierDestructorHook {
			out = append(out, m.Value.(func()))
		}
	}
	return out
}

// InstanceStateConstructor returns the declared instance-state constructor,
// if any.
func (d *ExportDecl) InstanceStateConstructor() (InstanceConstructor, bool) {
	for _, m := range d.Modifiers {
		if m.Kind == ModifierInstanceStateConstructor {
			return m.Value.(InstanceConstructor), true
		}
	}
	return nil, false
}

// InstanceStateDestructor returns the declared instance-state destructor,
// if any.
func (d *ExportDecl) InstanceStateDestructor() (InstanceDestructor, bool) {
	for _, m := range d.Modifiers {
		if m.Kind == ModifierInstanceStateDestructor {
			return m.Value.(InstanceDestructor), true
		}
	}
	return nil, false
}

// StartListener returns the declared start-event listener, if any.
func (d *ExportDecl) StartListener() (EventListener, bool) {
	for _, m := range d.Modifiers {
		if m.Kind == ModifierStartEventListener {
			return m.Value.(EventListener), true
		}
	}
	return nil, false
}

// StopListener returns the declared stop-event listener, if any.
func (d *ExportDecl) StopListener() (EventListener, bool) {
	for _, m := range d.Modifiers {
		if m.Kind == ModifierStopEventListener {
			return m.Value.(EventListener), true
		}
	}
	return nil, false
}

// DebugInfoConstructors returns every declared debug-info constructor.
// fimo-go does not model the debug-info vtable hierarchy itself (a named
// Non-goal); these are retained only so a module's declaration round-trips
// and a host embedding its own debug-info layer can invoke them.
func (d *ExportDecl) DebugInfoConstructors() []func() any {
	var out []func() any
	for _, m := range d.Modifiers {
		if m.Kind == ModifierDebugInfoConstructor {
			out = append(out, m.Value.(func() any))
		}
	}
	return out
}

func (k ModifierKind) String() string {
	switch k {
	case ModifierDestructorHook:
		return "destructor-hook"
	case ModifierStaticDependency:
		return "static-dependency"
	case ModifierDebugInfoConstructor:
		return "debug-info-constructor"
	case ModifierInstanceStateConstructor:
		return "instance-state-constructor"
	case ModifierInstanceStateDestructor:
		return "instance-state-destructor"
	case ModifierStartEventListener:
		return "start-event-listener"
	case ModifierStopEventListener:
		return "stop-event-listener"
	default:
		return fmt.Sprintf("modifier(%d)", int(k))
	}
}
