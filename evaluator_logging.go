package flags

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// LogrusEvaluatorLogger writes evaluations at debug level and failures at
// warn level.
func LogrusEvaluatorLogger(logger logrus.FieldLogger) EvaluatorLogger {
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		entry := logger.WithFields(logrus.Fields{
			"at":       "flags.evaluate",
			"engine":   event.Engine,
			"expr":     event.Expr,
			"scope":    event.Scope,
			"duration": event.Duration,
		})
		if event.Err != nil {
			entry.WithError(event.Err).Warn("expression failed")
			return
		}
		entry.Debug("expression evaluated")
	})
}

// WithEvaluatorLogger reports every expression evaluation to logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.evalLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evalLogger = logger
	}
}
