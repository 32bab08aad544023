package lifecycle

import (
	"testing"

	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnloadByNameRejectsStrongReferencesStillHeld(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	_, err = UnloadByName(deps, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrInstanceUnloaded)

	_, ok := deps.Registry.Get("a")
	assert.True(t, ok, "a rejected unload attempt must leave the instance untouched")
}

func TestUnloadByNameUnloadsOnceMarkedUnloadable(t *testing.T) {
	deps := newDeps()
	inst, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	inst.MarkUnloadable()
	fut, err := UnloadByName(deps, "a")
	require.NoError(t, err)
	_, err = pollToCompletion(t, fut)
	require.NoError(t, err)

	_, ok := deps.Registry.Get("a")
	assert.False(t, ok)
}

// TestPruneDestroysDependentBeforeDependency is spec.md §4.4's prune
// ordering rule: once a chain A -> B is both mark-unloadable'd, the prune
// pass must destroy A (the dependent) before B (what it depends on).
func TestPruneDestroysDependentBeforeDependency(t *testing.T) {
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
	aInst, _ := deps.Registry.Get("a")

	// With both self-refs released only b is prunable: b's import binding
	// still holds a strong ref on a, released as part of b's own unload,
	// not before.
	bInst.MarkUnloadable()
	aInst.MarkUnloadable()

	assert.ElementsMatch(t, []string{"b"}, namesOf(deps.Registry.Prunable()))

	fut := Prune(deps)
	count, err := pollToCompletion(t, fut)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "unloading b must release a's import ref, making a prunable in the same pass")

	_, aOK := deps.Registry.Get("a")
	_, bOK := deps.Registry.Get("b")
	assert.False(t, aOK)
	assert.False(t, bOK)
}

func TestPruneNoopWhenNothingPrunable(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	count, err := pollToCompletion(t, Prune(deps))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	_, ok := deps.Registry.Get("a")
	assert.True(t, ok)
}

func namesOf(instances []*registry.Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.Name
	}
	return out
}
