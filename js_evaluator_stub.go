//go:build !js_eval

package flags

// NewJSEvaluator returns nil unless built with the js_eval tag. A nil
// evaluator makes ExpressionWith fall back to the tree's evaluator.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool { return false }
