package loadset

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fimoengine/fimo-go/internal/abidecl"
	"github.com/fimoengine/fimo-go/internal/coretypes"
	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/lifecycle"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
	"github.com/fimoengine/fimo-go/internal/symbolindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps() *lifecycle.Deps {
	return &lifecycle.Deps{
		Registry:   registry.New(),
		Symbols:    symbolindex.New(),
		DepGraph:   depgraph.New(),
		NSIncludes: depgraph.New(),
		Log:        obslog.Noop(),
	}
}

func startedExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	ex := executor.New()
	h, err := ex.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		h.RequestStop()
		_ = h.Join(context.Background())
	})
	return ex
}

func await[T any](t *testing.T, fut executor.Future[T]) (T, error) {
	t.Helper()
	bc := executor.NewBlockingContext()
	done := make(chan struct{})
	var v T
	var err error
	go func() {
		v, err = executor.Await(bc, fut)
		close(done)
	}()
	select {
	case <-done:
		return v, err
	case <-time.After(5 * time.Second):
		t.Fatal("future never resolved")
		return v, err
	}
}

// TestCommitLinearChainLoadsInDependencyOrder is scenario S1: a three-link
// chain A -> B -> C where A statically exports a symbol B imports, and B
// exports one C imports, all staged together and committed in one call.
func TestCommitLinearChainLoadsInDependencyOrder(t *testing.T) {
	deps := newTestDeps()
	ex := startedExecutor(t)
	ls := New(deps, ex)

	a := &abidecl.ExportDecl{
		Name: "a",
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "core", Name: "a-sym", Version: coretypes.Version{Major: 1}, Pointer: "a-ptr"},
		},
	}
	b := &abidecl.ExportDecl{
		Name: "b",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "a-sym", Version: coretypes.Version{Major: 1}},
		},
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "core", Name: "b-sym", Version: coretypes.Version{Major: 1}, Pointer: "b-ptr"},
		},
	}
	c := &abidecl.ExportDecl{
		Name: "c",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "b-sym", Version: coretypes.Version{Major: 1}},
		},
	}

	var succeeded []string
	var mu sync.Mutex
	track := func(name string) Callback {
		return Callback{OnSuccess: func() {
			mu.Lock()
			succeeded = append(succeeded, name)
			mu.Unlock()
		}}
	}

	// Stage in an order that requires the Ordering pass to reorder them.
	require.NoError(t, ls.AddModule("", c))
	require.NoError(t, ls.AddModule("", b))
	require.NoError(t, ls.AddModule("", a))
	require.NoError(t, ls.AddCallback("a", track("a")))
	require.NoError(t, ls.AddCallback("b", track("b")))
	require.NoError(t, ls.AddCallback("c", track("c")))

	fut, err := ls.Commit()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.NoError(t, err)

	assert.Equal(t, StatusCommitted, ls.State())
	assert.Equal(t, []string{"a", "b", "c"}, succeeded)

	for _, name := range []string{"a", "b", "c"} {
		_, ok := deps.Registry.Get(name)
		assert.True(t, ok, "expected %s to be registered", name)
	}
}

// TestCommitCascadesMissingSymbolRejection is scenario S3: a module
// importing a symbol nothing staged or live provides is rejected on its
// own, without failing modules unrelated to it.
func TestCommitCascadesMissingSymbolRejection(t *testing.T) {
	deps := newTestDeps()
	ex := startedExecutor(t)
	ls := New(deps, ex)

	ok := &abidecl.ExportDecl{Name: "ok"}
	missing := &abidecl.ExportDecl{
		Name: "needs-missing",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "nonexistent", Version: coretypes.Version{Major: 1}},
		},
	}

	var okCalled bool
	var rejectErr error
	require.NoError(t, ls.AddModule("", ok))
	require.NoError(t, ls.AddModule("", missing))
	require.NoError(t, ls.AddCallback("ok", Callback{OnSuccess: func() { okCalled = true }}))
	require.NoError(t, ls.AddCallback("needs-missing", Callback{OnError: func(err error) { rejectErr = err }}))

	fut, err := ls.Commit()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.NoError(t, err)

	assert.True(t, okCalled)
	require.Error(t, rejectErr)
	assert.ErrorIs(t, rejectErr, coretypes.ErrUnknownSymbol)

	_, ok2 := deps.Registry.Get("needs-missing")
	assert.False(t, ok2)
}

// TestCommitAllCascadedRejectionsStillResolvesOK is the literal S3 edge
// case: every staged module cascades to ErrKindUnknownSymbol and zero
// modules load, but since no rejection is structural (no staged cycle, no
// name collision with the live Registry), the commit itself still
// resolves ok — only the individual callbacks report failure.
func TestCommitAllCascadedRejectionsStillResolvesOK(t *testing.T) {
	deps := newTestDeps()
	ex := startedExecutor(t)
	ls := New(deps, ex)

	b := &abidecl.ExportDecl{
		Name: "b",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "x", Version: coretypes.Version{Major: 1}},
		},
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "core", Name: "b", Version: coretypes.Version{Major: 1}, Pointer: "b-ptr"},
		},
	}
	c := &abidecl.ExportDecl{
		Name: "c",
		SymbolImports: []abidecl.SymbolImportDecl{
			{Namespace: "core", Name: "b", Version: coretypes.Version{Major: 1}},
		},
	}

	var bErr, cErr error
	require.NoError(t, ls.AddModule("", b))
	require.NoError(t, ls.AddModule("", c))
	require.NoError(t, ls.AddCallback("b", Callback{OnError: func(err error) { bErr = err }}))
	require.NoError(t, ls.AddCallback("c", Callback{OnError: func(err error) { cErr = err }}))

	fut, err := ls.Commit()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.NoError(t, err, "zero loads from ordinary cascaded rejections must not fail the commit")

	assert.Equal(t, StatusCommitted, ls.State())
	require.Error(t, bErr)
	require.Error(t, cErr)
	assert.ErrorIs(t, bErr, coretypes.ErrUnknownSymbol)
	assert.ErrorIs(t, cErr, coretypes.ErrUnknownSymbol)

	_, bOK := deps.Registry.Get("b")
	_, cOK := deps.Registry.Get("c")
	assert.False(t, bOK)
	assert.False(t, cOK)
}

// TestCommitNameCollisionWithLiveRegistryFailsCommit is the other
// structural-failure case spec.md §4.6 pass 5 names: a staged module's
// name collides with an instance already present in the live Registry, so
// its own Load pass fails with ErrKindDuplicateName. With nothing else
// staged to load, this is a structural failure and the commit itself
// resolves to error, not just the one callback.
func TestCommitNameCollisionWithLiveRegistryFailsCommit(t *testing.T) {
	deps := newTestDeps()
	ex := startedExecutor(t)
	ls := New(deps, ex)

	require.NoError(t, deps.Registry.Register(registry.NewInstance("taken")))

	decl := &abidecl.ExportDecl{Name: "taken"}
	require.NoError(t, ls.AddModule("", decl))

	fut, err := ls.Commit()
	require.NoError(t, err)
	_, err = await(t, fut)
	require.Error(t, err)
	assert.ErrorIs(t, err, coretypes.ErrDuplicateName)
	assert.Equal(t, StatusFailed, ls.State())
}

// TestCommitConcurrentDuplicateExportExactlyOneWins is scenario S4: two
// independent loading sets each stage a module exporting the same symbol
// and commit concurrently onto the shared Executor. The Executor's
// single-threaded loop serializes the two Load passes, so exactly one of
// the two orderings (set1 wins, or set2 wins) is observed — never both
// succeeding, never both failing.
func TestCommitConcurrentDuplicateExportExactlyOneWins(t *testing.T) {
	deps := newTestDeps()
	ex := startedExecutor(t)

	ls1 := New(deps, ex)
	ls2 := New(deps, ex)

	mod1 := &abidecl.ExportDecl{
		Name: "set1-mod",
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "shared", Name: "sym", Version: coretypes.Version{Major: 1}, Pointer: "one"},
		},
	}
	mod2 := &abidecl.ExportDecl{
		Name: "set2-mod",
		StaticExports: []abidecl.StaticExportDecl{
			{Namespace: "shared", Name: "sym", Version: coretypes.Version{Major: 1}, Pointer: "two"},
		},
	}

	var mu sync.Mutex
	var successes, failures int
	cb := func() Callback {
		return Callback{
			OnSuccess: func() { mu.Lock(); successes++; mu.Unlock() },
			OnError:   func(error) { mu.Lock(); failures++; mu.Unlock() },
		}
	}
	require.NoError(t, ls1.AddModule("", mod1))
	require.NoError(t, ls1.AddCallback("set1-mod", cb()))
	require.NoError(t, ls2.AddModule("", mod2))
	require.NoError(t, ls2.AddCallback("set2-mod", cb()))

	var wg sync.WaitGroup
	wg.Add(2)
	var fut1, fut2 executor.Future[struct{}]
	var err1, err2 error
	go func() {
		defer wg.Done()
		fut1, err1 = ls1.Commit()
	}()
	go func() {
		defer wg.Done()
		fut2, err2 = ls2.Commit()
	}()
	wg.Wait()
	require.NoError(t, err1)
	require.NoError(t, err2)

	_, e1 := await(t, fut1)
	_, e2 := await(t, fut2)
	_ = e1
	_ = e2

	assert.Equal(t, 1, successes, "exactly one commit should publish the shared symbol")
	assert.Equal(t, 1, failures, "exactly one commit should fail on the duplicate symbol")
}

// TestCommitCancellationFiresOnAbort is scenario S5: dropping the commit
// future before the Executor ever gets to run it cancels the whole
// attempt, firing on_abort for every staged module and no other callback.
func TestCommitCancellationFiresOnAbort(t *testing.T) {
	deps := newTestDeps()
	// Deliberately not started: the commit task sits in the ready queue
	// and is never polled, so Deinit observes it still pending.
	ex := executor.New()
	ls := New(deps, ex)

	decl := &abidecl.ExportDecl{Name: "never-loaded"}
	var aborted bool
	var otherCalled bool
	require.NoError(t, ls.AddModule("", decl))
	require.NoError(t, ls.AddCallback("never-loaded", Callback{
		OnAbort:   func() { aborted = true },
		OnSuccess: func() { otherCalled = true },
		OnError:   func(error) { otherCalled = true },
	}))

	fut, err := ls.Commit()
	require.NoError(t, err)

	deiniter, ok := fut.(executor.Deiniter)
	require.True(t, ok)
	deiniter.Deinit()
	require.NoError(t, ex.RunToCompletion())

	assert.True(t, aborted)
	assert.False(t, otherCalled)
	assert.Equal(t, StatusDismissed, ls.State())

	_, ok2 := deps.Registry.Get("never-loaded")
	assert.False(t, ok2)
}
