package flags

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jobTree carries the flags the standard options write to.
func jobTree(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	tree.MustAddFlag("Exec.MaxEvents", -1, WithHelp("events to process"))
	tree.MustAddFlag("Exec.SkipEvents", 0)
	tree.MustAddFlag("Exec.OutputLevel", 3)
	tree.MustAddFlag("Exec.DebugStage", "")
	tree.MustAddFlag("Exec.Interactive", "")
	tree.MustAddFlag("Exec.MTEventService", false)
	tree.MustAddFlag("Exec.MTEventServiceChannel", "EventService_EventsChannel")
	tree.MustAddFlag("Exec.Secret", "x", Hidden())
	tree.MustAddFlag("Input.Files", []string{})
	tree.MustAddFlag("Concurrency.NumThreads", 0)
	tree.MustAddFlag("Concurrency.NumConcurrentEvents", 0)
	tree.MustAddFlag("Concurrency.NumProcs", 0)
	tree.MustAddFlag("detA.flagD", []string{})
	require.NoError(t, tree.AddFlagsCategory("PerfMon", func() (*Tree, error) {
		fragment := New()
		fragment.MustAddFlag("PerfMon.doFastMonMT", false)
		fragment.MustAddFlag("PerfMon.doFullMonMT", false)
		return fragment, nil
	}, false))
	return tree
}

func quietParser() *ArgParser {
	p := NewArgParser("job")
	p.Output = &bytes.Buffer{}
	return p
}

func TestFillFromArgsStandardOptionsAndAssignments(t *testing.T) {
	tree := jobTree(t)

	args, err := tree.FillFromArgs([]string{"--evtMax=10", "detA.flagD+=['val']"}, quietParser())
	require.NoError(t, err)
	assert.Equal(t, []string{"detA.flagD+=['val']"}, args.Assignments)

	maxEvents, err := Get[int](tree, "Exec.MaxEvents")
	require.NoError(t, err)
	assert.Equal(t, 10, maxEvents)

	flagD, err := Get[[]string](tree, "detA.flagD")
	require.NoError(t, err)
	assert.Equal(t, []string{"val"}, flagD)
}

func TestFillFromArgsMapsOptions(t *testing.T) {
	tree := jobTree(t)

	_, err := tree.FillFromArgs([]string{
		"--skipEvents", "5",
		"-l", "debug",
		"-d", "exec",
		"-i", "run",
		"--nprocs=4",
		"--mtes",
		"--mtes-channel", "chan",
	}, quietParser())
	require.NoError(t, err)

	want := map[string]any{
		"Exec.SkipEvents":            5,
		"Exec.OutputLevel":           2,
		"Exec.DebugStage":            "exec",
		"Exec.Interactive":           "run",
		"Concurrency.NumProcs":       4,
		"Exec.MTEventService":        true,
		"Exec.MTEventServiceChannel": "chan",
	}
	for path, expected := range want {
		got, err := tree.Get(path)
		require.NoError(t, err, path)
		assert.Equal(t, expected, got, path)
	}
}

func TestFillFromArgsThreadsSetConcurrentEvents(t *testing.T) {
	tree := jobTree(t)
	_, err := tree.FillFromArgs([]string{"--threads=8"}, quietParser())
	require.NoError(t, err)

	events, err := Get[int](tree, "Concurrency.NumConcurrentEvents")
	require.NoError(t, err)
	assert.Equal(t, 8, events)

	explicit := jobTree(t)
	_, err = explicit.FillFromArgs([]string{"--threads=8", "--concurrent-events=2"}, quietParser())
	require.NoError(t, err)
	events, err = Get[int](explicit, "Concurrency.NumConcurrentEvents")
	require.NoError(t, err)
	assert.Equal(t, 2, events)
}

func TestFillFromArgsExpandsInputGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pool.root", "b.pool.root", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	tree := jobTree(t)
	pattern := filepath.Join(dir, "*.root")
	_, err := tree.FillFromArgs([]string{"--filesInput", pattern + ",extra.data"}, quietParser())
	require.NoError(t, err)

	files, err := Get[[]string](tree, "Input.Files")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pool.root"),
		filepath.Join(dir, "b.pool.root"),
		"extra.data",
	}, files)
}

func TestFillFromArgsPerfMonLoadsCategory(t *testing.T) {
	tree := jobTree(t)
	assert.Equal(t, KindPending, tree.Kind("PerfMon"))

	_, err := tree.FillFromArgs([]string{"--pmon=fullmonmt"}, quietParser())
	require.NoError(t, err)
	assert.Equal(t, KindCategory, tree.Kind("PerfMon"))

	full, err := Get[bool](tree, "PerfMon.doFullMonMT")
	require.NoError(t, err)
	assert.True(t, full)
}

func TestFillFromArgsConfigOnlyAndExtra(t *testing.T) {
	tree := jobTree(t)
	args, err := tree.FillFromArgs([]string{"--config-only", "--", "positional", "x=1"}, quietParser())
	require.NoError(t, err)
	assert.True(t, args.ConfigOnly)
	assert.Empty(t, args.ConfigFile)
	assert.Equal(t, []string{"positional", "x=1"}, args.Extra)

	withFile := jobTree(t)
	args, err = withFile.FillFromArgs([]string{"--config-only=job.yaml"}, quietParser())
	require.NoError(t, err)
	assert.True(t, args.ConfigOnly)
	assert.Equal(t, "job.yaml", args.ConfigFile)
}

func TestFillFromArgsErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want error
	}{
		{"bare token", []string{"Exec"}, ErrInvalidArgument},
		{"unknown option", []string{"--nope"}, ErrInvalidArgument},
		{"bad level", []string{"--loglevel=LOUD"}, ErrInvalidArgument},
		{"bad debug stage", []string{"--debug=later"}, ErrInvalidArgument},
		{"bad pmon", []string{"--pmon=slow"}, ErrInvalidArgument},
		{"unknown flag", []string{"Exec.MaxEvent=1"}, ErrUnknownFlag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jobTree(t).FillFromArgs(tc.args, quietParser())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFillFromArgsOnLockedTree(t *testing.T) {
	tree := jobTree(t)
	tree.Lock()
	_, err := tree.FillFromArgs([]string{"--evtMax=1"}, quietParser())
	assert.ErrorIs(t, err, ErrFrozenTree)
}

func TestFillFromArgsHelp(t *testing.T) {
	tree := jobTree(t)
	out := &bytes.Buffer{}
	parser := NewArgParser("job")
	parser.Output = out

	args, err := tree.FillFromArgs([]string{"--help", "Exec.MaxEvents=7", "Exec"}, parser)
	require.ErrorIs(t, err, ErrHelpRequested)
	assert.True(t, args.Help)
	assert.Equal(t, "Exec", args.HelpPath)

	text := out.String()
	assert.Contains(t, text, "usage: job --help Exec")
	assert.Contains(t, text, "Exec flags:")
	assert.Contains(t, text, "Exec.MaxEvents")
	assert.Contains(t, text, "(default: 7)")
	assert.Contains(t, text, "events to process")
	assert.NotContains(t, text, "Exec.Secret")
}

func TestFillFromArgsTopLevelHelp(t *testing.T) {
	tree := jobTree(t)
	out := &bytes.Buffer{}
	parser := NewArgParser("job")
	parser.Output = out

	_, err := tree.FillFromArgs([]string{"-h"}, parser)
	require.ErrorIs(t, err, ErrHelpRequested)

	text := out.String()
	assert.Contains(t, text, "usage: job [options] [flag=value ...]")
	assert.Contains(t, text, "--evtMax")
	assert.Contains(t, text, "flag subcategories:")
	assert.Contains(t, text, "PerfMon flags")
	assert.Equal(t, KindCategory, tree.Kind("PerfMon"), "help loads the categories it lists")
}
