package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionEvaluator runs expr-lang expressions for calculate and validate
// actions and for connection guards. Compiled programs are cached by
// expression string; the cache is safe for concurrent use.
type ExpressionEvaluator struct {
	mu    sync.RWMutex
	bools map[string]*vm.Program
	exprs map[string]*vm.Program
}

// NewExpressionEvaluator creates an evaluator with empty caches.
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{
		bools: make(map[string]*vm.Program),
		exprs: make(map[string]*vm.Program),
	}
}

// EvaluateBool runs a boolean expression.
func (e *ExpressionEvaluator) EvaluateBool(expression string, env map[string]any) (bool, error) {
	prog, err := e.program(e.bools, expression, true)
	if err != nil {
		return false, fmt.Errorf("compile condition: %w", err)
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}

	isTrue, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return bool")
	}
	return isTrue, nil
}

// Evaluate runs an expression and returns its value.
func (e *ExpressionEvaluator) Evaluate(expression string, env map[string]any) (any, error) {
	prog, err := e.program(e.exprs, expression, false)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}
	return result, nil
}

func (e *ExpressionEvaluator) program(cache map[string]*vm.Program, expression string, asBool bool) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := cache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	opts := []expr.Option{expr.AllowUndefinedVariables()}
	if asBool {
		opts = append(opts, expr.AsBool())
	}
	prog, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}
