package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	flags "github.com/goliatone/go-flagtree"
	"github.com/goliatone/go-flagtree/internal/catalog"
	"github.com/goliatone/go-flagtree/internal/hydrate"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configFile string

func newRootCmd() *cobra.Command {
	var cfg settings
	root := &cobra.Command{
		Use:   "flagtree",
		Short: "Inspect the job flag tree",
		Long: `flagtree builds the job flag tree, applies override files and
command-line assignments, locks it and prints the result.

Job options and flag assignments follow "--", for example:

  flagtree dump -- --evtMax=10 --threads=4 Exec.SkipEvents=2 Input.Files+="['a.data']"
  flagtree dump -- --help Detector`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadSettings(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			cfg = loaded
			return configureLogger(cfg.LogLevel)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "settings file (yaml, json or toml)")
	pf.String("log-level", "warning", "log level (trace|debug|info|warning|error)")
	pf.StringSlice("overrides", nil, "YAML override files, later files win")
	pf.String("format", "tree", "output format (tree|yaml|json)")
	pf.String("pattern", "", "only show flags whose path matches this regular expression")

	root.AddCommand(
		newDumpCmd(&cfg),
		newHashCmd(&cfg),
		newDescribeCmd(&cfg),
		newJobCmd(&cfg),
	)
	return root
}

func newDumpCmd(cfg *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [-- job options and path=value ...]",
		Short: "Print the locked flag tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := assemble(*cfg, args, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), tree, *cfg)
		},
	}
}

func newHashCmd(cfg *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "hash [-- job options and path=value ...]",
		Short: "Print the content hash and fingerprint of the locked tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := assemble(*cfg, args, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			sum, err := tree.Hash()
			if err != nil {
				return oops.In("hash").Wrapf(err, "hash tree")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sum, sum.Fingerprint())
			return err
		},
	}
}

func newDescribeCmd(cfg *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "List every flag with its type, default and help",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := catalog.New(flags.WithLogger(log))
			if err != nil {
				return oops.In("catalog").Wrapf(err, "build flags")
			}
			descriptors, err := tree.Describe()
			if err != nil {
				return oops.In("describe").Wrapf(err, "describe flags")
			}
			return encode(cmd.OutOrStdout(), cfg.Format, descriptors)
		},
	}
}

// jobSummary is the typed view of the flags a job runner reads.
type jobSummary struct {
	Exec struct {
		MaxEvents   int `flag:"MaxEvents" yaml:"max_events" json:"max_events"`
		SkipEvents  int `flag:"SkipEvents" yaml:"skip_events" json:"skip_events"`
		OutputLevel int `flag:"OutputLevel" yaml:"output_level" json:"output_level"`
	} `flag:"Exec" yaml:"exec" json:"exec"`
	Concurrency struct {
		NumThreads          int `flag:"NumThreads" yaml:"threads" json:"threads"`
		NumConcurrentEvents int `flag:"NumConcurrentEvents" yaml:"concurrent_events" json:"concurrent_events"`
		NumProcs            int `flag:"NumProcs" yaml:"procs" json:"procs"`
	} `flag:"Concurrency" yaml:"concurrency" json:"concurrency"`
	Input struct {
		Files  []string `flag:"Files" yaml:"files" json:"files"`
		Format string   `flag:"Format" yaml:"format" json:"format"`
	} `flag:"Input" yaml:"input" json:"input"`
	Hash string `flag:"-" yaml:"hash" json:"hash"`
}

func newJobCmd(cfg *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "job [-- job options and path=value ...]",
		Short: "Print the job summary decoded from the locked tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := assemble(*cfg, args, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			decoder := hydrate.NewDecoder[jobSummary](
				hydrate.WithPostHook[jobSummary](validateJob),
				hydrate.WithPostHook[jobSummary](func(_ hydrate.Context, job *jobSummary) error {
					sum, err := tree.Hash()
					if err != nil {
						return err
					}
					job.Hash = sum.String()
					return nil
				}),
			)
			job, err := decoder.Decode(tree, "")
			if err != nil {
				return oops.In("job").Wrapf(err, "decode job summary")
			}
			return encode(cmd.OutOrStdout(), cfg.Format, job)
		},
	}
}

func validateJob(_ hydrate.Context, job *jobSummary) error {
	if job.Concurrency.NumThreads > 0 && job.Concurrency.NumConcurrentEvents > job.Concurrency.NumThreads*4 {
		return fmt.Errorf("%d concurrent events exceed four per thread", job.Concurrency.NumConcurrentEvents)
	}
	if job.Concurrency.NumThreads > 0 && job.Concurrency.NumProcs > 0 {
		return fmt.Errorf("threads and worker processes are mutually exclusive")
	}
	return nil
}

// assemble builds the catalog, applies override files and command-line
// arguments, then locks the tree.
func assemble(cfg settings, arguments []string, out io.Writer) (*flags.Tree, *flags.Args, error) {
	tree, err := catalog.New(flags.WithLogger(log))
	if err != nil {
		return nil, nil, oops.In("catalog").Wrapf(err, "build flags")
	}

	if len(cfg.Overrides) > 0 {
		layers := make([]flags.Layer, 0, len(cfg.Overrides))
		for i, path := range cfg.Overrides {
			scope := flags.NewScope("file:"+path, flags.ScopePriorityFile+i, flags.WithScopeLabel(path))
			layer, err := flags.ReadYAMLLayerFile(scope, path)
			if err != nil {
				return nil, nil, oops.In("overrides").With("file", path).Wrapf(err, "read overrides")
			}
			layers = append(layers, layer)
		}
		traces, err := tree.ApplyOverrides(layers...)
		if err != nil {
			return nil, nil, oops.In("overrides").Wrapf(err, "apply overrides")
		}
		for _, trace := range traces {
			if effective, ok := trace.Effective(); ok {
				log.WithFields(logrus.Fields{
					"path":  trace.Path,
					"scope": effective.Scope.Name,
				}).Debug("flag overridden")
			}
		}
	}

	parser := flags.NewArgParser("flagtree")
	parser.Output = out
	args, err := tree.FillFromArgs(arguments, parser)
	if err != nil {
		return nil, nil, err
	}
	tree.Lock()

	if args.ConfigOnly && args.ConfigFile != "" {
		if err := writeConfig(tree, args.ConfigFile); err != nil {
			return nil, nil, err
		}
	}
	return tree, args, nil
}

func writeConfig(tree *flags.Tree, path string) error {
	payload, err := tree.YAML()
	if err != nil {
		return oops.In("config-only").Wrapf(err, "render flags")
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return oops.In("config-only").With("file", path).Wrapf(err, "write flags")
	}
	log.WithField("file", path).Info("flags written")
	return nil
}

func render(w io.Writer, tree *flags.Tree, cfg settings) error {
	if cfg.Format == "tree" {
		return tree.Dump(w, flags.DumpOptions{Pattern: cfg.Pattern, Evaluate: true})
	}
	dict, err := tree.AsDict()
	if err != nil {
		return oops.In("dump").Wrapf(err, "resolve flags")
	}
	return encode(w, cfg.Format, dict)
}

func encode(w io.Writer, format string, value any) error {
	switch format {
	case "yaml", "tree":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return oops.In("encode").Wrapf(err, "encode yaml")
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	return oops.In("encode").With("format", format).Errorf("unknown format %q", format)
}
