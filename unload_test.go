package fimo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageAndCommit(t *testing.T, c *Context, decl *ExportDecl) {
	t.Helper()
	ls := c.NewLoadingSet()
	require.NoError(t, ls.AddModule(decl))
	fut, err := ls.Commit()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.NoError(t, err)
}

// TestInstanceUnloadDirect exercises Instance.Unload reached entirely
// through the public API: load a module, mark it unloadable, and unload
// it directly without waiting for a prune pass.
func TestInstanceUnloadDirect(t *testing.T) {
	c := newTestContext(t)
	stageAndCommit(t, c, &ExportDecl{Name: "solo"})

	info, ok := c.FindInstance("solo")
	require.True(t, ok)
	inst, ok := info.Acquire()
	require.True(t, ok)

	inst.MarkUnloadable()
	inst.Release()

	fut, err := inst.Unload()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.NoError(t, err)

	assert.False(t, info.IsLoaded())
}

// TestInstanceUnloadRejectsWhileStrongRefHeld confirms Unload refuses to
// tear an instance down while anything still holds a strong reference.
func TestInstanceUnloadRejectsWhileStrongRefHeld(t *testing.T) {
	c := newTestContext(t)
	stageAndCommit(t, c, &ExportDecl{Name: "solo"})

	info, ok := c.FindInstance("solo")
	require.True(t, ok)
	inst, ok := info.Acquire()
	require.True(t, ok)
	defer inst.Release()

	_, err := inst.Unload()
	require.Error(t, err)
	assert.True(t, info.IsLoaded())
}

// TestContextPruneDestroysMarkedUnloadableInstance exercises the
// automatic prune pass through the public API: mark-unloadable releases
// the self-reference, and once every other strong reference is also
// released, Prune tears the instance down.
func TestContextPruneDestroysMarkedUnloadableInstance(t *testing.T) {
	c := newTestContext(t)
	stageAndCommit(t, c, &ExportDecl{Name: "solo"})

	info, ok := c.FindInstance("solo")
	require.True(t, ok)
	inst, ok := info.Acquire()
	require.True(t, ok)

	inst.MarkUnloadable()
	inst.Release()

	n, err := await(t, c.Prune())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, info.IsLoaded())
}

func TestContextPruneNoopWithNothingPrunable(t *testing.T) {
	c := newTestContext(t)
	stageAndCommit(t, c, &ExportDecl{Name: "solo"})

	n, err := await(t, c.Prune())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	info, ok := c.FindInstance("solo")
	require.True(t, ok)
	assert.True(t, info.IsLoaded())
}
