package flags

import (
	"errors"
	"fmt"
)

// ErrEmptyExpression is returned for an Expression resolver with no source.
var ErrEmptyExpression = errors.New("flags: expression must not be empty")

// Evaluation phases reported by EvaluationError.
const (
	PhaseSetup   = "setup"
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

// EvaluationError reports a failed expression with the engine, the phase it
// failed in and the category it was evaluated for.
type EvaluationError struct {
	Engine string
	Phase  string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "flags: " + e.Engine
	if e.Phase != "" {
		msg += " " + e.Phase
	}
	if e.Expr != "" {
		msg += fmt.Sprintf(" %q", e.Expr)
	}
	if e.Scope != "" {
		msg += " in " + e.Scope
	}
	return msg + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// evaluationError wraps err, or completes the fields an inner
// EvaluationError left empty.
func evaluationError(engine, phase, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Phase == "" {
			existing.Phase = phase
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Scope == "" {
			existing.Scope = scope
		}
		return existing
	}
	return &EvaluationError{Engine: engine, Phase: phase, Expr: expr, Scope: scope, Err: err}
}
