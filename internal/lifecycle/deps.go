// Package lifecycle implements spec.md §4.6 step 4 (the Load pass body)
// and §4.7 (Unload) as two executor.FSM-based futures, LoadInstance and
// UnloadInstance, each one state function per numbered spec.md step, with
// unwind handlers for the "tear down what this step acquired" requirements.
//
// Grounded on eventloop's reverse-teardown idiom generalized by
// internal/executor.FSM, and on the juju worker dependency doc
// (other_examples) for the "release decrements the target's refcount,
// possibly making it prunable, but pruning itself happens on a later pass,
// not inline" discipline applied in step 4 of Unload.
package lifecycle

import (
	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
	"github.com/fimoengine/fimo-go/internal/symbolindex"
)

// Deps bundles the process-global collaborators every lifecycle operation
// needs. A single set of these is owned by the root fimo.Context and
// shared by every LoadingSet (spec.md §5 "Shared-resource policy").
type Deps struct {
	Registry   *registry.Registry
	Symbols    *symbolindex.Index
	DepGraph   *depgraph.Graph
	NSIncludes *depgraph.Graph
	Log        *obslog.Logger
}

// edgeAcquired records one dependency or namespace-include edge acquired
// during a Load attempt, so a failure can release exactly what this
// instance itself acquired, in reverse order.
type edgeAcquired struct {
	namespaceEdge bool
	target        string // instance name, or namespace for a namespace-include edge
	exporter      *registry.Instance
	kind          depgraph.EdgeKind
}

// dynExport pairs a published dynamic export with the function needed to
// tear it down, for reverse-order destruction on step 2 of Unload or on a
// later dynamic export's constructor failure during Load.
type dynExport struct {
	namespace, name string
	value           any
	destructor      abidecl.DynamicExportDestructor
}
