package flags

import (
	"fmt"
	"time"
)

// Evaluator runs flag expressions.
type Evaluator interface {
	Evaluate(ctx RuleContext, expression string) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression
// source.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// RuleContext is what an expression can see: the tree root, the category
// of the flag being resolved and the evaluation time.
type RuleContext struct {
	Root  *Tree
	Scope Address
	Now   *time.Time
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope.path == "" {
		return "root"
	}
	return ctx.Scope.path
}

// read resolves an absolute flag path.
func (ctx RuleContext) read(path string) (any, error) {
	if ctx.Root == nil {
		return nil, newFlagError("get", path, ErrUnknownFlag)
	}
	return ctx.Root.Get(path)
}

// readLocal resolves a path relative to the flag's category.
func (ctx RuleContext) readLocal(name string) (any, error) {
	if ctx.Root == nil {
		return nil, newFlagError("get", name, ErrUnknownFlag)
	}
	return ctx.Root.Get(joinPath(ctx.Scope.path, name))
}

// ExpressionResolver computes a flag from an expression. Inside the
// expression flag("A.b") reads an absolute path and local("b") reads a
// sibling of the flag being resolved, so the same expression keeps working
// in every prefixed copy of a category.
type ExpressionResolver struct {
	Source string
	// Evaluator overrides the tree's evaluator when set.
	Evaluator Evaluator
}

// Expression returns a resolver evaluated with the tree's evaluator, expr by
// default.
func Expression(source string) *ExpressionResolver {
	return &ExpressionResolver{Source: source}
}

// ExpressionWith returns a resolver bound to a specific evaluator.
func ExpressionWith(evaluator Evaluator, source string) *ExpressionResolver {
	return &ExpressionResolver{Source: source, Evaluator: evaluator}
}

// Resolve implements Resolver.
func (r *ExpressionResolver) Resolve(root *Tree, scope Address) (any, error) {
	evaluator := r.Evaluator
	if evaluator == nil {
		evaluator = root.evaluator()
	}
	ctx := RuleContext{Root: root, Scope: scope}
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, r.Source)
	root.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engineName(evaluator),
		Expr:     r.Source,
		Scope:    ctx.scopeLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, evaluationError(engineName(evaluator), PhaseRun, r.Source, ctx.scopeLabel(), err)
	}
	return value, nil
}

func (r *ExpressionResolver) String() string {
	return fmt.Sprintf("expr(%s)", r.Source)
}

func engineName(evaluator Evaluator) string {
	if named, ok := evaluator.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return fmt.Sprintf("%T", evaluator)
}

func (t *Tree) evaluator() Evaluator {
	return t.cfg.evaluator
}
