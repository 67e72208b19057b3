package flags

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
)

// Output levels accepted by --loglevel, mapped onto Exec.OutputLevel.
var outputLevels = map[string]int{
	"ALL":     0,
	"VERBOSE": 1,
	"DEBUG":   2,
	"INFO":    3,
	"WARNING": 4,
	"ERROR":   5,
	"FATAL":   6,
}

// perfMonFlags maps --pmon modes onto the PerfMon flag they enable.
var perfMonFlags = map[string]string{
	"fastmonmt": "PerfMon.doFastMonMT",
	"fullmonmt": "PerfMon.doFullMonMT",
}

// ArgParser holds the standard job options understood by FillFromArgs.
// Callers may register extra options on FlagSet before parsing and read them
// back from the same FlagSet afterwards.
type ArgParser struct {
	// Name is shown in the usage line.
	Name string
	// Output receives the help text. Defaults to os.Stdout.
	Output io.Writer

	fs *pflag.FlagSet

	help        bool
	debug       string
	interactive string
	evtMax      int
	skipEvents  int
	filesInput  []string
	loglevel    string
	configOnly  string
	threads     int
	concurrent  int
	nprocs      int
	mtes        bool
	mtesChannel string
	pmon        string
}

// NewArgParser builds a parser with the standard options.
func NewArgParser(name string) *ArgParser {
	p := &ArgParser{Name: name, Output: os.Stdout}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	fs.BoolVarP(&p.help, "help", "h", false, "show this help and the flags of the selected categories")
	fs.StringVarP(&p.debug, "debug", "d", "", "attach debugger at <stage> (init|exec|fini)")
	fs.StringVarP(&p.interactive, "interactive", "i", "", "drop into interactive mode at <stage> (init|run)")
	fs.IntVar(&p.evtMax, "evtMax", 0, "max number of events to process")
	fs.IntVar(&p.skipEvents, "skipEvents", 0, "number of events to skip")
	fs.StringSliceVar(&p.filesInput, "filesInput", nil, "input file(s), comma separated, supports * wildcards")
	fs.StringVarP(&p.loglevel, "loglevel", "l", "", "logging level (ALL|VERBOSE|DEBUG|INFO|WARNING|ERROR|FATAL)")
	fs.StringVar(&p.configOnly, "config-only", "", "stop after configuration and optionally write it to FILE")
	fs.Lookup("config-only").NoOptDefVal = configOnlyNoFile
	fs.IntVar(&p.threads, "threads", 0, "run with given number of threads (0 for serial execution)")
	fs.IntVar(&p.concurrent, "concurrent-events", 0, "number of concurrent events")
	fs.IntVar(&p.nprocs, "nprocs", 0, "run with given number of worker processes")
	fs.BoolVar(&p.mtes, "mtes", false, "run multi-threaded event service")
	fs.StringVar(&p.mtesChannel, "mtes-channel", "", "event service communication channel")
	fs.StringVar(&p.pmon, "pmon", "", "performance monitoring (fastmonmt|fullmonmt)")

	p.fs = fs
	return p
}

const configOnlyNoFile = "\x00"

// FlagSet exposes the underlying pflag set for extension.
func (p *ArgParser) FlagSet() *pflag.FlagSet {
	return p.fs
}

// Args reports what FillFromArgs parsed besides flag assignments.
type Args struct {
	Help bool
	// ConfigOnly is set by --config-only; ConfigFile holds its optional FILE.
	ConfigOnly bool
	ConfigFile string
	// Assignments are the path=value tokens, in the order they were applied.
	Assignments []string
	// HelpPath is the category selected by bare path tokens under --help.
	HelpPath string
	// Extra holds positional tokens following a "--" terminator.
	Extra []string
}

// FillFromArgs applies command-line arguments to the tree: standard job
// options first, then path=value and path+=value tokens. With -h/--help the
// assignments are applied, help for the category named by the remaining
// bare tokens is printed and ErrHelpRequested is returned.
func (t *Tree) FillFromArgs(arguments []string, parser *ArgParser) (*Args, error) {
	if err := t.checkMutable("fill", ""); err != nil {
		return nil, err
	}
	if parser == nil {
		parser = NewArgParser("flags")
	}
	if err := parser.fs.Parse(arguments); err != nil {
		return nil, &FlagError{Op: "fill", Detail: err.Error(), Err: ErrInvalidArgument}
	}

	args := &Args{Help: parser.help}
	if err := t.applyStandardOptions(parser, args); err != nil {
		return nil, err
	}

	var helpPath []string
	dash := parser.fs.ArgsLenAtDash()
	for i, token := range parser.fs.Args() {
		if dash >= 0 && i >= dash {
			args.Extra = append(args.Extra, token)
			continue
		}
		if !strings.Contains(token, "=") {
			if parser.help {
				helpPath = append(helpPath, strings.Split(token, pathSeparator)...)
				continue
			}
			return nil, &FlagError{Op: "fill", Path: token, Detail: "expected path=value", Err: ErrInvalidArgument}
		}
		if err := t.FillFromString(token); err != nil {
			return nil, err
		}
		args.Assignments = append(args.Assignments, token)
	}

	if parser.help {
		args.HelpPath = strings.Join(helpPath, pathSeparator)
		if err := t.writeHelp(parser, args.HelpPath); err != nil {
			return args, err
		}
		return args, ErrHelpRequested
	}
	return args, nil
}

func (t *Tree) applyStandardOptions(p *ArgParser, args *Args) error {
	changed := p.fs.Changed

	if changed("debug") {
		if err := oneOf("debug", p.debug, "init", "exec", "fini"); err != nil {
			return err
		}
		if err := t.Set("Exec.DebugStage", p.debug); err != nil {
			return err
		}
	}
	if changed("evtMax") {
		if err := t.Set("Exec.MaxEvents", p.evtMax); err != nil {
			return err
		}
	}
	if changed("interactive") {
		if err := oneOf("interactive", p.interactive, "init", "run"); err != nil {
			return err
		}
		if err := t.Set("Exec.Interactive", p.interactive); err != nil {
			return err
		}
	}
	if changed("skipEvents") {
		if err := t.Set("Exec.SkipEvents", p.skipEvents); err != nil {
			return err
		}
	}
	if changed("filesInput") {
		files, err := expandInputs(p.filesInput)
		if err != nil {
			return err
		}
		if err := t.Set("Input.Files", files); err != nil {
			return err
		}
	}
	if changed("loglevel") {
		level, ok := outputLevels[strings.ToUpper(p.loglevel)]
		if !ok {
			return &FlagError{Op: "fill", Path: "--loglevel", Detail: fmt.Sprintf("unknown level %q", p.loglevel), Err: ErrInvalidArgument}
		}
		if err := t.Set("Exec.OutputLevel", level); err != nil {
			return err
		}
	}
	if changed("config-only") {
		args.ConfigOnly = true
		if p.configOnly != configOnlyNoFile {
			args.ConfigFile = p.configOnly
		}
	}
	if changed("threads") {
		if err := t.Set("Concurrency.NumThreads", p.threads); err != nil {
			return err
		}
		if !changed("concurrent-events") {
			current, err := t.Get("Concurrency.NumConcurrentEvents")
			if err != nil {
				return err
			}
			if isZeroNumber(current) {
				if err := t.Set("Concurrency.NumConcurrentEvents", p.threads); err != nil {
					return err
				}
			}
		}
	}
	if changed("concurrent-events") {
		if err := t.Set("Concurrency.NumConcurrentEvents", p.concurrent); err != nil {
			return err
		}
	}
	if changed("nprocs") {
		if err := t.Set("Concurrency.NumProcs", p.nprocs); err != nil {
			return err
		}
	}
	if changed("pmon") {
		target, ok := perfMonFlags[strings.ToLower(p.pmon)]
		if !ok {
			return &FlagError{Op: "fill", Path: "--pmon", Detail: fmt.Sprintf("unknown mode %q", p.pmon), Err: ErrInvalidArgument}
		}
		if err := t.NeedFlagsCategory("PerfMon"); err != nil {
			return err
		}
		if err := t.Set(target, true); err != nil {
			return err
		}
	}
	if changed("mtes") {
		if err := t.Set("Exec.MTEventService", p.mtes); err != nil {
			return err
		}
	}
	if changed("mtes-channel") {
		if err := t.Set("Exec.MTEventServiceChannel", p.mtesChannel); err != nil {
			return err
		}
	}
	return nil
}

func oneOf(option, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return &FlagError{
		Op:     "fill",
		Path:   "--" + option,
		Detail: fmt.Sprintf("%q not in %s", value, strings.Join(allowed, "|")),
		Err:    ErrInvalidArgument,
	}
}

// expandInputs splits comma lists and expands glob patterns.
func expandInputs(values []string) ([]string, error) {
	files := []string{}
	for _, value := range values {
		for _, file := range strings.Split(value, ",") {
			file = strings.TrimSpace(file)
			if file == "" {
				continue
			}
			if !strings.ContainsAny(file, "*?[") {
				files = append(files, file)
				continue
			}
			matches, err := doublestar.FilepathGlob(file)
			if err != nil {
				return nil, &FlagError{Op: "fill", Path: "--filesInput", Detail: err.Error(), Err: ErrInvalidArgument}
			}
			files = append(files, matches...)
		}
	}
	return files, nil
}

func isZeroNumber(value any) bool {
	switch v := value.(type) {
	case int:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	}
	return false
}
