package flags

import (
	"io"

	"github.com/goliatone/go-flagtree/pkg/activity"
	"github.com/sirupsen/logrus"
)

// Option configures a Tree.
type Option func(*config)

type config struct {
	logger       logrus.FieldLogger
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	evalLogger   EvaluatorLogger
	hooks        activity.Hooks
	channel      string
	// setupErrs collects option failures reported once the tree exists.
	setupErrs    []error
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = noopEvaluatorLogger{}
	}
	if cfg.programCache == nil {
		cfg.programCache = NewProgramCache()
	}
	return cfg
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithLogger routes tree diagnostics to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithEvaluator selects the engine used by Expression resolvers that do not
// carry their own.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithProgramCache shares compiled expression programs across evaluations.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithActivityHooks emits tree mutations to hooks on channel. Nil hooks are
// dropped.
func WithActivityHooks(hooks activity.Hooks, channel string) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.hooks = normalized
		cfg.channel = channel
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
