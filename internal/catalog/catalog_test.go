package catalog

import (
	"testing"

	flags "github.com/goliatone/go-flagtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	tree, err := New()
	require.NoError(t, err)

	maxEvents, err := flags.Get[int](tree, "Exec.MaxEvents")
	require.NoError(t, err)
	assert.Equal(t, -1, maxEvents)

	format, err := flags.Get[Format](tree, "Input.Format")
	require.NoError(t, err)
	assert.Equal(t, FormatPOOL, format)

	isMC, err := flags.Get[bool](tree, "Input.isMC")
	require.NoError(t, err)
	assert.True(t, isMC)

	assert.True(t, tree.HasCategory("PerfMon"))
	assert.False(t, tree.HasFlag("PerfMon.doFastMonMT"), "loaders stay pending until needed")
}

func TestConcurrentEventsFollowThreads(t *testing.T) {
	tree, err := New()
	require.NoError(t, err)
	require.NoError(t, tree.Set("Concurrency.NumThreads", 8))

	events, err := flags.Get[int](tree, "Concurrency.NumConcurrentEvents")
	require.NoError(t, err)
	assert.Equal(t, 8, events)
}

func TestDetectorClonesAreIndependent(t *testing.T) {
	tree, err := New()
	require.NoError(t, err)
	require.NoError(t, tree.Set("Input.Files", []string{"run.data"}))
	require.NoError(t, tree.Set("Detector.SCT.Enable", false))

	pixel, err := flags.Get[bool](tree, "Detector.Pixel.Calibrate")
	require.NoError(t, err)
	assert.True(t, pixel)

	sct, err := flags.Get[bool](tree, "Detector.SCT.Calibrate")
	require.NoError(t, err)
	assert.False(t, sct)

	trigger, err := flags.Get[bool](tree, "Trigger.Enabled")
	require.NoError(t, err)
	assert.True(t, trigger)
}

func TestFormatEnumRejectsUnknownMembers(t *testing.T) {
	tree, err := New()
	require.NoError(t, err)

	require.NoError(t, tree.FillFromString("Input.Format=Format.BS"))
	format, err := flags.Get[Format](tree, "Input.Format")
	require.NoError(t, err)
	assert.Equal(t, FormatBS, format)

	err = tree.FillFromString("Input.Format=RAW")
	assert.ErrorIs(t, err, flags.ErrInvalidEnumValue)
}

func TestLockedCatalogHashIsStable(t *testing.T) {
	first, err := New()
	require.NoError(t, err)
	second, err := New()
	require.NoError(t, err)
	first.Lock()
	second.Lock()

	a, err := first.Hash()
	require.NoError(t, err)
	_, err = second.Get("Detector.TRT.Geometry")
	require.NoError(t, err)
	b, err := second.Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
