package flags

import (
	"errors"
	"testing"

	"github.com/goliatone/go-flagtree/pkg/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeEmitsActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	tree := New(WithActivityHooks(activity.Hooks{capture}, "jobs"))

	tree.MustAddFlag("Exec.MaxEvents", 10)
	require.NoError(t, tree.Set("Exec.MaxEvents", 20))
	require.NoError(t, tree.AddFlagsCategory("PerfMon", func() (*Tree, error) {
		fragment := New()
		fragment.MustAddFlag("PerfMon.doFastMonMT", false)
		return fragment, nil
	}, false))
	_, err := tree.Get("PerfMon.doFastMonMT")
	require.NoError(t, err)
	require.NoError(t, tree.Delete("Exec.MaxEvents"))
	tree.Lock()
	tree.Lock()

	events := capture.Events()
	for _, event := range events {
		assert.Equal(t, "jobs", event.Channel)
		assert.Equal(t, tree.ID(), event.TreeID)
		assert.False(t, event.OccurredAt.IsZero())
	}
	assert.Equal(t, []string{
		activity.VerbFlagAdded,
		activity.VerbFlagUpdated,
		activity.VerbCategoryAdded,
		activity.VerbCategoryLoaded,
		activity.VerbFlagDeleted,
		activity.VerbTreeLocked,
	}, capture.Verbs())

	updated := events[1]
	assert.Equal(t, activity.ObjectFlag, updated.ObjectType)
	assert.Equal(t, "Exec.MaxEvents", updated.ObjectID)
	assert.Equal(t, 20, updated.Metadata["value"])

	locked := events[len(events)-1]
	assert.Equal(t, activity.ObjectTree, locked.ObjectType)
	assert.Equal(t, tree.ID(), locked.ObjectID)
}

func TestTreeActivityDescribesResolvers(t *testing.T) {
	capture := &activity.CaptureHook{}
	tree := New(WithActivityHooks(activity.Hooks{capture}, ""))
	tree.MustAddFlag("Trigger.Enabled", Expression(`true`))

	events := capture.Events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, activity.DefaultChannel, event.Channel)
	assert.Equal(t, true, event.Metadata["dynamic"])
	assert.Equal(t, "expr(true)", event.Metadata["value"])
}

func TestTreeActivityHookFailuresDoNotFailMutations(t *testing.T) {
	capture := &activity.CaptureHook{Err: errors.New("sink down")}
	tree := New(WithActivityHooks(activity.Hooks{capture}, "jobs"))

	require.NoError(t, tree.AddFlag("Exec.MaxEvents", 1))
	require.NoError(t, tree.Set("Exec.MaxEvents", 2))
	assert.Len(t, capture.Events(), 2)
	assert.Len(t, tree.ActivityHooks(), 1)
}

func TestTreeWithoutHooksEmitsNothing(t *testing.T) {
	tree := New(WithActivityHooks(nil, "jobs"))
	tree.MustAddFlag("Exec.MaxEvents", 1)
	assert.Empty(t, tree.ActivityHooks())
}
