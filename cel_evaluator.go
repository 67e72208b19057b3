package flags

import (
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator. Only the
// checked AST is cached; programs bind the tree being read and are rebuilt
// per evaluation.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Engine() string {
	return "cel"
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, evaluationError("cel", PhaseCompile, "", ctx.scopeLabel(), ErrEmptyExpression)
	}
	ctx = ctx.withDefaultNow()
	env, err := e.buildEnv(ctx)
	if err != nil {
		return nil, evaluationError("cel", PhaseSetup, expression, ctx.scopeLabel(), err)
	}
	checked, err := e.loadOrCheck(env, expression)
	if err != nil {
		return nil, evaluationError("cel", PhaseCompile, expression, ctx.scopeLabel(), err)
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, evaluationError("cel", PhaseCompile, expression, ctx.scopeLabel(), err)
	}
	out, _, err := program.Eval(map[string]any{"now": ctx.timestamp()})
	if err != nil {
		return nil, evaluationError("cel", PhaseRun, expression, ctx.scopeLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCheck(env *celgo.Env, expression string) (*celgo.Ast, error) {
	key := "cel:" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if checked, ok := cached.(*celgo.Ast); ok {
				return checked, nil
			}
		}
	}
	parsed, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(parsed)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if e.cache != nil {
		e.cache.Set(key, checked)
	}
	return checked, nil
}

func (e *celEvaluator) buildEnv(ctx RuleContext) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Function("flag",
			celgo.Overload("flag_string", []*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(lookupBinding(ctx.read)),
			),
		),
		celgo.Function("local",
			celgo.Overload("local_string", []*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(lookupBinding(ctx.readLocal)),
			),
		),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list", []*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)}, celgo.DynType,
				celgo.BinaryBinding(e.callBinding()),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

func lookupBinding(read func(string) (any, error)) func(ref.Val) ref.Val {
	return func(arg ref.Val) ref.Val {
		path, ok := arg.Value().(string)
		if !ok {
			return types.NewErr("flags: flag path must be a string")
		}
		value, err := read(path)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		return nativeToValue(value)
	}
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) callBinding() func(ref.Val, ref.Val) ref.Val {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("flags: call name must be string")
		}
		native, err := argsVal.ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		args, _ := native.([]any)
		for i, arg := range args {
			if val, ok := arg.(ref.Val); ok {
				args[i] = val.Value()
			}
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		return nativeToValue(result)
	}
}

func nativeToValue(value any) ref.Val {
	if value == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(value)
}
