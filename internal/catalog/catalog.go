// Package catalog assembles the job flag tree used by the flagtree command.
package catalog

import (
	"strings"

	flags "github.com/goliatone/go-flagtree"
)

// Format identifies the layout of the input files.
type Format string

const (
	FormatBS   Format = "BS"
	FormatPOOL Format = "POOL"
)

// FormatEnum is accepted on the command line as "Format.BS" or "BS".
var FormatEnum = flags.NewEnum("Format", map[string]Format{
	"BS":   FormatBS,
	"POOL": FormatPOOL,
})

// Detectors are the sub-detectors registered from one shared generator.
var Detectors = []string{"Pixel", "SCT", "TRT"}

// New returns an unlocked tree with the standard job flags. Categories other
// than Exec, Input and Concurrency are loaded on first use.
func New(opts ...flags.Option) (*flags.Tree, error) {
	t := flags.New(opts...)
	steps := []func(*flags.Tree) error{
		addExec,
		addInput,
		addConcurrency,
		func(t *flags.Tree) error {
			return t.AddFlagsCategory("PerfMon", perfMonFlags, false)
		},
		func(t *flags.Tree) error {
			return t.AddFlagsCategory("Trigger", triggerFlags, false)
		},
	}
	for _, name := range Detectors {
		path := "Detector." + name
		steps = append(steps, func(t *flags.Tree) error {
			return t.AddFlagsCategory(path, detectorFlags, true)
		})
	}
	for _, step := range steps {
		if err := step(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func addExec(t *flags.Tree) error {
	for _, def := range []struct {
		path  string
		value any
		help  string
	}{
		{"Exec.MaxEvents", -1, "number of events to process, -1 for all"},
		{"Exec.SkipEvents", 0, "number of events to skip"},
		{"Exec.OutputLevel", 3, "message output level, 0 (ALL) to 6 (FATAL)"},
		{"Exec.DebugStage", "", "stage to attach a debugger at"},
		{"Exec.Interactive", "", "stage to enter interactive mode at"},
		{"Exec.MTEventService", false, "run the multi-threaded event service"},
		{"Exec.MTEventServiceChannel", "EventService_EventsChannel", "event service channel"},
	} {
		if err := t.AddFlag(def.path, def.value, flags.WithHelp(def.help)); err != nil {
			return err
		}
	}
	return nil
}

func addInput(t *flags.Tree) error {
	if err := t.AddFlag("Input.Files", []string{}, flags.WithHelp("input files")); err != nil {
		return err
	}
	if err := t.AddFlag("Input.Format", flags.ResolverFunc(inputFormat),
		flags.WithEnum(FormatEnum), flags.WithHelp("input file format, guessed from Input.Files")); err != nil {
		return err
	}
	return t.AddFlag("Input.isMC", flags.ResolverFunc(func(root *flags.Tree) (any, error) {
		format, err := flags.Get[Format](root, "Input.Format")
		if err != nil {
			return nil, err
		}
		return format != FormatBS, nil
	}), flags.WithHelp("input is simulated"))
}

func inputFormat(root *flags.Tree) (any, error) {
	files, err := flags.Get[[]string](root, "Input.Files")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if strings.HasSuffix(file, ".data") || strings.HasSuffix(file, ".bs") {
			return FormatBS, nil
		}
	}
	return FormatPOOL, nil
}

func addConcurrency(t *flags.Tree) error {
	if err := t.AddFlag("Concurrency.NumThreads", 0, flags.WithHelp("worker threads, 0 for serial execution")); err != nil {
		return err
	}
	if err := t.AddFlag("Concurrency.NumConcurrentEvents", flags.ResolverFunc(func(root *flags.Tree) (any, error) {
		return root.Get("Concurrency.NumThreads")
	}), flags.TypeOf[int](), flags.WithHelp("events in flight, defaults to NumThreads")); err != nil {
		return err
	}
	return t.AddFlag("Concurrency.NumProcs", 0, flags.WithHelp("worker processes"))
}

func perfMonFlags() (*flags.Tree, error) {
	t := flags.New()
	if err := t.AddFlag("PerfMon.doFastMonMT", false, flags.WithHelp("lightweight monitoring")); err != nil {
		return nil, err
	}
	if err := t.AddFlag("PerfMon.doFullMonMT", false, flags.WithHelp("full monitoring")); err != nil {
		return nil, err
	}
	if err := t.AddFlag("PerfMon.OutputJSON", "perfmonmt.json", flags.WithHelp("monitoring report")); err != nil {
		return nil, err
	}
	return t, nil
}

func triggerFlags() (*flags.Tree, error) {
	t := flags.New()
	if err := t.AddFlag("Trigger.Enabled", flags.Expression(`!flag("Input.isMC")`),
		flags.TypeOf[bool](), flags.WithHelp("run the trigger")); err != nil {
		return nil, err
	}
	if err := t.AddFlag("Trigger.Menu", "Physics_pp_run3_v1", flags.WithHelp("trigger menu")); err != nil {
		return nil, err
	}
	return t, nil
}

// detectorFlags is registered with prefix set, so each registration owns an
// independent copy of these flags.
func detectorFlags() (*flags.Tree, error) {
	t := flags.New()
	if err := t.AddFlag("Enable", true, flags.WithHelp("include the sub-detector")); err != nil {
		return nil, err
	}
	if err := t.AddFlag("Calibrate", flags.Expression(`local("Enable") && !flag("Input.isMC")`),
		flags.TypeOf[bool](), flags.WithHelp("apply data calibrations")); err != nil {
		return nil, err
	}
	if err := t.AddFlag("Geometry", "default", flags.WithHelp("geometry tag")); err != nil {
		return nil, err
	}
	return t, nil
}
