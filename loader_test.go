package flags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cloneableFlags builds a fragment with relative names, for prefix loaders.
func cloneableFlags(calls *int) Generator {
	return func() (*Tree, error) {
		*calls++
		t := New()
		t.MustAddFlag("a", 10)
		t.MustAddFlag("b", ScopedResolverFunc(func(_ *Tree, scope Address) (any, error) {
			a, err := Get[int](scope, "a")
			if err != nil {
				return nil, err
			}
			return a + 1, nil
		}))
		return t, nil
	}
}

func TestHasCategoryDoesNotLoad(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("Z", func() (*Tree, error) {
		calls++
		t := New()
		t.MustAddFlag("Z.C.x", 1)
		t.MustAddFlag("Z.y", 2)
		return t, nil
	}, false))

	assert.True(t, tree.HasCategory("Z"))
	assert.Equal(t, KindPending, tree.Kind("Z"))
	assert.False(t, tree.HasCategory("Z.C"))
	assert.False(t, tree.HasFlag("Z.y"))
	assert.Equal(t, 0, calls)

	require.NoError(t, tree.NeedFlagsCategory("Z"))
	assert.True(t, tree.HasCategory("Z.C"))
	assert.True(t, tree.HasFlag("Z.y"))
	assert.Equal(t, KindCategory, tree.Kind("Z"))

	require.NoError(t, tree.NeedFlagsCategory("Z"))
	_, err := tree.Get("Z.C.x")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a loader runs once")
}

func TestReadingLoadsCategory(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("X", cloneableFlags(&calls), true))

	value, err := tree.Get("X.b")
	require.NoError(t, err)
	assert.Equal(t, 11, value)
	assert.Equal(t, 1, calls)
}

func TestPrefixedClonesAreIndependent(t *testing.T) {
	calls := 0
	gen := cloneableFlags(&calls)
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("Z.Xclone1", gen, true))
	require.NoError(t, tree.AddFlagsCategory("Z.Xclone2", gen, true))

	require.NoError(t, tree.Set("Z.Xclone1.a", 20))

	one, err := tree.Get("Z.Xclone1.a")
	require.NoError(t, err)
	two, err := tree.Get("Z.Xclone2.a")
	require.NoError(t, err)
	assert.Equal(t, 20, one)
	assert.Equal(t, 10, two)

	b1, err := tree.Get("Z.Xclone1.b")
	require.NoError(t, err)
	b2, err := tree.Get("Z.Xclone2.b")
	require.NoError(t, err)
	assert.Equal(t, 21, b1, "scoped resolvers read their own clone")
	assert.Equal(t, 11, b2)
	assert.Equal(t, 2, calls)
}

func TestNestedLoadersAreRebased(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("Outer", func() (*Tree, error) {
		t := New()
		t.MustAddFlag("Flag", "outer")
		if err := t.AddFlagsCategory("Inner", func() (*Tree, error) {
			inner := New()
			inner.MustAddFlag("Inner.Flag", "inner")
			return inner, nil
		}, false); err != nil {
			return nil, err
		}
		return t, nil
	}, true))

	value, err := tree.Get("Outer.Inner.Flag")
	require.NoError(t, err)
	assert.Equal(t, "inner", value)
}

func TestLoadAllRunsLoadersRegisteredByLoaders(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("P", func() (*Tree, error) {
		t := New()
		if err := t.AddFlagsCategory("Q", func() (*Tree, error) {
			q := New()
			q.MustAddFlag("v", 1)
			return q, nil
		}, true); err != nil {
			return nil, err
		}
		return t, nil
	}, true))

	require.NoError(t, tree.LoadAll())
	assert.True(t, tree.HasFlag("P.Q.v"))
}

func TestLoaderErrorsPropagate(t *testing.T) {
	boom := errors.New("generator exploded")
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("Bad", func() (*Tree, error) { return nil, boom }, false))

	_, err := tree.Get("Bad.x")
	require.ErrorIs(t, err, boom)
	assert.True(t, tree.HasCategory("Bad"), "failed loaders stay pending")
}

func TestLoadingIsAllowedAfterLock(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("X", cloneableFlags(&calls), true))
	tree.Lock()

	value, err := tree.Get("X.a")
	require.NoError(t, err)
	assert.Equal(t, 10, value)
}

func TestDeletePendingCategorySkipsLoader(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlagsCategory("X", cloneableFlags(&calls), true))

	require.NoError(t, tree.Delete("X"))
	assert.False(t, tree.HasCategory("X"))
	assert.Equal(t, 0, calls)
}

func TestJoin(t *testing.T) {
	calls := 0
	base := New()
	base.MustAddFlag("Exec.MaxEvents", 1)

	other := New()
	other.MustAddFlag("Extra.Flag", true)
	require.NoError(t, other.AddFlagsCategory("Lazy", cloneableFlags(&calls), true))

	require.NoError(t, base.Join(other, ""))
	assert.True(t, base.HasFlag("Extra.Flag"))
	value, err := base.Get("Lazy.b")
	require.NoError(t, err)
	assert.Equal(t, 11, value)

	prefixed := New()
	require.NoError(t, prefixed.Join(other, "Sub"))
	assert.True(t, prefixed.HasFlag("Sub.Extra.Flag"))
	value, err = prefixed.Get("Sub.Lazy.a")
	require.NoError(t, err)
	assert.Equal(t, 10, value)

	assert.ErrorIs(t, base.Join(other, ""), ErrDuplicateFlag)

	base.Lock()
	assert.ErrorIs(t, base.Join(New(), "More"), ErrFrozenTree)
}

func TestFailedLoadLeavesCategoryPending(t *testing.T) {
	calls := 0
	tree := New()
	tree.MustAddFlag("Zed.a", 1)
	require.NoError(t, tree.AddFlagsCategory("Extra", func() (*Tree, error) {
		calls++
		t := New()
		t.MustAddFlag("Extra.X", 3)
		t.MustAddFlag("Zed.a", 2)
		return t, nil
	}, false))

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := tree.Get("Extra.X")
		if !errors.Is(err, ErrDuplicateFlag) {
			t.Fatalf("attempt %d: expected ErrDuplicateFlag, got %v", attempt, err)
		}
		assert.Equal(t, KindPending, tree.Kind("Extra"))
		assert.Equal(t, attempt, calls, "the loader is retried after a failure")
	}

	value, err := tree.Get("Zed.a")
	require.NoError(t, err)
	assert.Equal(t, 1, value)
	assert.False(t, tree.HasFlag("Extra.X"))
}

func TestJoinCollisionAddsNothing(t *testing.T) {
	base := New()
	base.MustAddFlag("Zed.a", 1)

	other := New()
	other.MustAddFlag("Alpha.x", 1)
	other.MustAddFlag("Zed.a", 2)

	assert.ErrorIs(t, base.Join(other, ""), ErrDuplicateFlag)
	assert.False(t, base.HasCategory("Alpha"))
	assert.Equal(t, []string{"Zed.a"}, base.root.flagPaths())
}
