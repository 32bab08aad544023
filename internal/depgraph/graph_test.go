package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDependencyThenCycleRejected(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))

	// B -> A would close A -> B -> A: rejected, and the graph is left
	// unchanged (spec.md scenario S2).
	err := g.AddEdge("B", "A", EdgeDynamic)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, DynamicPresent, g.Query("A", "B"))
	assert.Equal(t, Removed, g.Query("B", "A"))
}

func TestAddDependencyRejectsSelf(t *testing.T) {
	g := New()
	err := g.AddEdge("A", "A", EdgeDynamic)
	assert.ErrorIs(t, err, ErrSelfDependency)
}

func TestAddDependencyRejectsDuplicate(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	err := g.AddEdge("A", "B", EdgeDynamic)
	assert.ErrorIs(t, err, ErrEdgeExists)
}

func TestTransitiveCycleRejected(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	require.NoError(t, g.AddEdge("B", "C", EdgeDynamic))

	// C -> A would close A -> B -> C -> A.
	err := g.AddEdge("C", "A", EdgeDynamic)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestRemoveDependency(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	require.NoError(t, g.RemoveEdge("A", "B"))
	assert.Equal(t, Removed, g.Query("A", "B"))

	err := g.RemoveEdge("A", "B")
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestRemoveStaticEdgeFails(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeStatic))
	err := g.RemoveEdge("A", "B")
	assert.ErrorIs(t, err, ErrEdgeStatic)
	assert.Equal(t, StaticPresent, g.Query("A", "B"))
}

func TestRemoveNodeDropsAllEdges(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	require.NoError(t, g.AddEdge("C", "A", EdgeDynamic))

	g.RemoveNode("A")
	assert.Equal(t, Removed, g.Query("A", "B"))
	assert.Equal(t, Removed, g.Query("C", "A"))
}

func TestTopoOrderDependenciesFirst(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	require.NoError(t, g.AddEdge("B", "C", EdgeDynamic))

	order, err := g.TopoOrder([]string{"A", "B", "C"})
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["C"], pos["B"])
	assert.Less(t, pos["B"], pos["A"])
}

func TestDependentsAndDependencies(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("A", "B", EdgeDynamic))
	require.NoError(t, g.AddEdge("C", "B", EdgeStatic))

	assert.ElementsMatch(t, []string{"B"}, g.Dependencies("A"))
	assert.ElementsMatch(t, []string{"A", "C"}, g.Dependents("B"))
}
