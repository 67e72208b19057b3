package flags

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingResolver(calls *int, value any) ResolverFunc {
	return func(*Tree) (any, error) {
		*calls++
		return value, nil
	}
}

func TestResolversRunOnEveryReadBeforeLock(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlag("R.Value", countingResolver(&calls, 7)))
	assert.Equal(t, 0, calls, "adding a resolver does not run it")

	for i := 0; i < 3; i++ {
		_, err := tree.Get("R.Value")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestResolversRunOnceAfterLock(t *testing.T) {
	calls := 0
	tree := New()
	require.NoError(t, tree.AddFlag("R.Value", countingResolver(&calls, []int{1, 2})))
	tree.Lock()

	first, err := Get[[]int](tree, "R.Value")
	require.NoError(t, err)
	first[0] = 99
	second, err := Get[[]int](tree, "R.Value")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1, 2}, second, "memoized values are copied on read")
}

func TestResolverErrorsAreNotMemoized(t *testing.T) {
	fail := true
	tree := New()
	require.NoError(t, tree.AddFlag("R.Flaky", ResolverFunc(func(*Tree) (any, error) {
		if fail {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	})))
	tree.Lock()

	_, err := tree.Get("R.Flaky")
	require.Error(t, err)
	fail = false
	value, err := tree.Get("R.Flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestCyclicResolversFail(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlag("C.A", ResolverFunc(func(root *Tree) (any, error) {
		return root.Get("C.B")
	})))
	require.NoError(t, tree.AddFlag("C.B", ResolverFunc(func(root *Tree) (any, error) {
		return root.Get("C.A")
	})))
	require.NoError(t, tree.AddFlag("C.Self", ResolverFunc(func(root *Tree) (any, error) {
		return root.Get("C.Self")
	})))

	_, err := tree.Get("C.A")
	require.ErrorIs(t, err, ErrCyclicFlag)
	assert.Contains(t, err.Error(), "C.A -> C.B -> C.A")

	_, err = tree.Get("C.Self")
	require.ErrorIs(t, err, ErrCyclicFlag)

	assert.Empty(t, tree.resolving, "the resolution stack unwinds after failures")
}

func TestResolverResultsAreConvertedToDeclaredType(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlag("T.Count", ResolverFunc(func(*Tree) (any, error) {
		return int64(4), nil
	}), TypeOf[int]()))
	require.NoError(t, tree.AddFlag("T.Bad", ResolverFunc(func(*Tree) (any, error) {
		return "four", nil
	}), TypeOf[int]()))

	count, err := Get[int](tree, "T.Count")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	_, err = tree.Get("T.Bad")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestFuncLiteralsAreResolvers(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlag("F.Plain", func(*Tree) (any, error) { return "plain", nil }))
	require.NoError(t, tree.AddFlag("F.Scoped", func(_ *Tree, scope Address) (any, error) {
		return scope.Path(), nil
	}))

	plain, err := tree.Get("F.Plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", plain)

	scoped, err := tree.Get("F.Scoped")
	require.NoError(t, err)
	assert.Equal(t, "F", scoped)
}

func TestInitAllReportsEveryFailure(t *testing.T) {
	tree := New()
	require.NoError(t, tree.AddFlag("Ok.Value", 1))
	require.NoError(t, tree.AddFlag("Bad.One", ResolverFunc(func(*Tree) (any, error) {
		return nil, errors.New("first")
	})))
	require.NoError(t, tree.AddFlag("Bad.Two", ResolverFunc(func(*Tree) (any, error) {
		return nil, errors.New("second")
	})))

	err := tree.InitAll()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.True(t, strings.Contains(err.Error(), "first") && strings.Contains(err.Error(), "second"))

	require.NoError(t, tree.Delete("Bad"))
	assert.NoError(t, tree.InitAll())
}
