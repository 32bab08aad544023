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

func TestAddDependencyAddsEdgeAndRefsTarget(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)
	_, err = pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "b"}, ""))
	require.NoError(t, err)

	require.NoError(t, AddDependency(deps, "b", "a"))

	assert.Equal(t, depgraph.DynamicPresent, QueryDependency(deps, "b", "a"))
	ai, _ := deps.Registry.Get("a")
	assert.EqualValues(t, 2, ai.StrongCount())
}

func TestAddDependencyRejectsUnknownTarget(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	err = AddDependency(deps, "a", "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrDependencyCycleLive)
}

// TestAddDependencyRejectsLiveCycle is scenario S2: A already depends on
// B, so B depending back on A would close a cycle in the live graph.
func TestAddDependencyRejectsLiveCycle(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)
	_, err = pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "b"}, ""))
	require.NoError(t, err)

	require.NoError(t, AddDependency(deps, "a", "b"))

	err = AddDependency(deps, "b", "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrDependencyCycleLive)

	// The rejected attempt must not have left the edge b -> a recorded.
	assert.Equal(t, depgraph.Removed, QueryDependency(deps, "b", "a"))
}

func TestRemoveDependencyRemovesEdgeAndUnrefsTarget(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)
	_, err = pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "b"}, ""))
	require.NoError(t, err)
	require.NoError(t, AddDependency(deps, "b", "a"))

	require.NoError(t, RemoveDependency(deps, "b", "a"))
	assert.Equal(t, depgraph.Removed, QueryDependency(deps, "b", "a"))
	ai, _ := deps.Registry.Get("a")
	assert.EqualValues(t, 1, ai.StrongCount())
}

func TestRemoveDependencyRejectsMissingEdge(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	err = RemoveDependency(deps, "a", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrDependencyCycleLive)
}

func TestRemoveDependencyRejectsStaticEdge(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)
	b := &abidecl.ExportDecl{
		Name:      "b",
		Modifiers: []abidecl.Modifier{abidecl.StaticDependency("a")},
	}
	_, err = pollToCompletion(t, LoadInstance(deps, b, ""))
	require.NoError(t, err)

	err = RemoveDependency(deps, "b", "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrDependencyCycleLive)
}

func TestNamespaceIncludeAddRemoveQuery(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	require.NoError(t, AddNamespaceInclude(deps, "a", "core"))
	assert.Equal(t, depgraph.DynamicPresent, QueryNamespaceInclude(deps, "a", "core"))

	require.NoError(t, RemoveNamespaceInclude(deps, "a", "core"))
	assert.Equal(t, depgraph.Removed, QueryNamespaceInclude(deps, "a", "core"))
}

// TestReentrantOpsBoundToOwnInstance exercises the LoadContext closures
// wireReentrantOps binds, the way a module's own constructor would reach
// them (spec.md §5 reentrancy).
func TestReentrantOpsBoundToOwnInstance(t *testing.T) {
	deps := newDeps()
	_, err := pollToCompletion(t, LoadInstance(deps, &abidecl.ExportDecl{Name: "a"}, ""))
	require.NoError(t, err)

	var ctorErr error
	b := &abidecl.ExportDecl{
		Name: "b",
		Modifiers: []abidecl.Modifier{
			abidecl.InstanceStateConstructor(func(ctx *abidecl.LoadContext) executor.Future[any] {
				ctorErr = ctx.AddDependency("a")
				return executor.Ready[any](nil)
			}),
		},
	}
	_, err = pollToCompletion(t, LoadInstance(deps, b, ""))
	require.NoError(t, err)
	require.NoError(t, ctorErr)
	assert.Equal(t, depgraph.DynamicPresent, QueryDependency(deps, "b", "a"))
}
