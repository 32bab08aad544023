package fimo

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/loadset"
)

// ExportDecl, modifier constructors, and LoadContext are re-exported
// directly: the binary contract is the same type whether a caller builds
// it by hand (for a module linked into the host binary) or discovers it
// through ExportsFromPlugin.
type (
	ExportDecl           = abidecl.ExportDecl
	ResourceDecl         = abidecl.ResourceDecl
	NamespaceImportDecl  = abidecl.NamespaceImportDecl
	SymbolImportDecl     = abidecl.SymbolImportDecl
	StaticExportDecl     = abidecl.StaticExportDecl
	DynamicExportDecl    = abidecl.DynamicExportDecl
	Modifier             = abidecl.Modifier
	LoadContext          = abidecl.LoadContext
	Linkage              = abidecl.Linkage
	InstanceConstructor  = abidecl.InstanceConstructor
	InstanceDestructor   = abidecl.InstanceDestructor
	DynExportConstructor = abidecl.DynamicExportConstructor
	DynExportDestructor  = abidecl.DynamicExportDestructor
	EventListener        = abidecl.EventListener
)

const (
	LinkageGlobal = abidecl.LinkageGlobal
	LinkageUnique = abidecl.LinkageUnique
)

var (
	DestructorHook           = abidecl.DestructorHook
	StaticDependency         = abidecl.StaticDependency
	DebugInfoConstructor     = abidecl.DebugInfoConstructor
	InstanceStateConstructor = abidecl.InstanceStateConstructor
	InstanceStateDestructor  = abidecl.InstanceStateDestructor
	StartEventListener       = abidecl.StartEventListener
	StopEventListener        = abidecl.StopEventListener
)

// Callback mirrors loadset.Callback: at most one of its three fields
// fires per staged module, once the commit settles (or is cancelled).
type Callback = loadset.Callback

// LoadingSet is the public staging container (spec.md §4.6): stage
// modules from declarations or discovered binaries, register callbacks,
// then Commit.
type LoadingSet struct {
	inner *loadset.LoadingSet
}

// AddModule stages a module from an in-memory declaration.
func (ls *LoadingSet) AddModule(decl *ExportDecl) error {
	return ls.inner.AddModule("", decl)
}

// AddModulesFromPath stages every export filter accepts from the binary
// discovered at path, honoring a `module.fimo_module` directory marker
// (see ModuleMarkerFile and ExportsFromPlugin). A nil filter accepts
// everything.
func (ls *LoadingSet) AddModulesFromPath(path string, filter func(*ExportDecl) bool) error {
	return ls.inner.AddModulesFromPath(path, pluginPathDiscover, filter)
}

// AddModulesFromLocal stages every export filter accepts that discover
// reports. Use ExportsFromPlugin-style discovery for binaries opened
// separately by the host; there is no local-binary introspection
// equivalent in Go (see ExportsFromPlugin's doc comment).
func (ls *LoadingSet) AddModulesFromLocal(discover func() ([]*ExportDecl, error), filter func(*ExportDecl) bool) error {
	return ls.inner.AddModulesFromLocal(discover, filter)
}

// AddCallback registers a status listener for the named staged module.
func (ls *LoadingSet) AddCallback(name string, cb Callback) error {
	return ls.inner.AddCallback(name, cb)
}

// QueryModule returns the declaration staged under name, if any.
func (ls *LoadingSet) QueryModule(name string) (*ExportDecl, bool) {
	return ls.inner.QueryModule(name)
}

// QuerySymbol reports whether any staged module declares a compatible
// export at (namespace, name, version).
func (ls *LoadingSet) QuerySymbol(namespace, name string, version Version) bool {
	return ls.inner.QuerySymbol(namespace, name, version)
}

// Commit runs the five-pass commit algorithm (spec.md §4.6) and returns a
// future resolving once every staged module has either loaded or been
// rejected. Dropping the future via its Deinit method before it resolves
// cancels the whole attempt.
func (ls *LoadingSet) Commit() (executor.Future[struct{}], error) {
	return ls.inner.Commit()
}

// Version is the three-component version type used throughout the
// external interface (spec.md §4.3's compatibility rule).
type Version = coretypes.Version
