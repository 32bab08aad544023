package lifecycle

import (
	"testing"

	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnloadInstanceRetractsExportsAndReleasesEdges(t *testing.T) {
	deps := newDeps()
	a := &abidecl.ExportDecl{
		Name: "a",
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "core", Name: "a", Version: coretypes.Version{Major: 1}, Pointer: "a-ptr"},
		},
	}
	_, err := pollToCompletion(t, LoadInstance(deps, a, ""))
	require.NoError(t, err)

	b := &abidecl.ExportDecl{
		Name: "b",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "a", Version: coretypes.Version{Major: 1}},
		},
	}
	bInst, err := pollToCompletion(t, LoadInstance(deps, b, ""))
	require.NoError(t, err)

	stopped := false
	b.Modifiers = append(b.Modifiers, abidecl.StopEventListener(func(ctx *abidecl.LoadContext) error {
		stopped = true
		return nil
	}))

	bInst.MarkUnloadable()
	_, err = pollToCompletion(t, UnloadInstance(deps, b, bInst, &abidecl.LoadContext{InstanceName: "b"}))
	require.NoError(t, err)
	assert.True(t, stopped)

	_, ok := deps.Registry.Get("b")
	assert.False(t, ok)
	assert.Equal(t, depgraph.Removed, deps.DepGraph.Query("b", "a"))

	// a's strong count drops back to 1 (its own self-ref) once b releases
	// its import binding.
	aInst, _ := deps.Registry.Get("a")
	assert.EqualValues(t, 1, aInst.StrongCount())
}

func TestUnloadInstanceDestroysDynamicExportsInReverseOrder(t *testing.T) {
	deps := newDeps()
	var order []string
	decl := &abidecl.ExportDecl{
		Name: "a",
		DynamicExports: []abidecl.DynamicExportDecl{
			{
				Namespace: "core", Name: "first", Version: coretypes.Version{Major: 1},
				Constructor: func(ctx *abidecl.LoadContext) executor.Future[any] {
					return executor.Ready[any]("first-value")
				},
				Destructor: func(v any) { order = append(order, v.(string)) },
			},
			{
				Namespace: "core", Name: "second", Version: coretypes.Version{Major: 1},
				Constructor: func(ctx *abidecl.LoadContext) executor.Future[any] {
					return executor.Ready[any]("second-value")
				},
				Destructor: func(v any) { order = append(order, v.(string)) },
			},
		},
	}
	inst, err := pollToCompletion(t, LoadInstance(deps, decl, ""))
	require.NoError(t, err)

	inst.MarkUnloadable()
	_, err = pollToCompletion(t, UnloadInstance(deps, decl, inst, &abidecl.LoadContext{InstanceName: "a"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"second-value", "first-value"}, order)
}
