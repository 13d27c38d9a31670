package condition

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
)

const DEFAULT_EVALUATION_TIMEOUT = time.Second

type ExpressionError struct {
	Expression string
	Message    string
	Err        error
}

func (e ExpressionError) Error() string {
	if e.Expression == "" {
		return fmt.Sprintf("expression error: %s", e.Message)
	}
	return fmt.Sprintf("expression error in '%s': %s", e.Expression, e.Message)
}

func (e ExpressionError) Unwrap() error {
	return e.Err
}

// Evaluator decides whether a transition is eligible. Custom expressions are javascript,
// compiled once and kept in the cache manager.
type Evaluator struct {
	caches  *cache.CacheManager
	timeout time.Duration
}

func NewEvaluator(caches *cache.CacheManager) *Evaluator {
	return &Evaluator{
		caches:  caches,
		timeout: DEFAULT_EVALUATION_TIMEOUT,
	}
}

func (e *Evaluator) Evaluate(cond model.TransitionCondition, vars map[string]any) (bool, error) {
	switch cond.Type {
	case model.CONDITION_ALWAYS, "":
		return true, nil
	case model.CONDITION_NEVER:
		return false, nil
	case model.CONDITION_ON_SUCCESS:
		return lastActionOutcome(vars, true, true), nil
	case model.CONDITION_ON_FAILURE:
		return lastActionOutcome(vars, false, false), nil
	case model.CONDITION_CUSTOM:
		return e.evaluateCustom(cond.Expression, vars)
	}
	return false, ExpressionError{Message: fmt.Sprintf("unknown condition type '%s'", cond.Type)}
}

func lastActionOutcome(vars map[string]any, expectSuccess bool, defaultValue bool) bool {
	success, ok := vars[model.LAST_ACTION_RESULT_KEY].(bool)
	if !ok {
		return defaultValue
	}
	if expectSuccess {
		return success
	}
	return !success
}

// Compile returns the cached program for an expression, compiling it on first use.
func (e *Evaluator) Compile(expression string) (*goja.Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ExpressionError{Message: "custom condition requires an expression"}
	}
	if program, ok := e.caches.GetCondition(expression); ok {
		return program, nil
	}
	program, err := goja.Compile("condition", expression, true)
	if err != nil {
		return nil, ExpressionError{Expression: expression, Message: "compile failed", Err: err}
	}
	e.caches.PutCondition(expression, program)
	return program, nil
}

func (e *Evaluator) evaluateCustom(expression string, vars map[string]any) (bool, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	vars = model.CloneVars(vars)
	for k, v := range vars {
		if util.IsIdentifier(k) {
			if err := vm.Set(k, v); err != nil {
				return false, ExpressionError{Expression: expression, Message: "binding variable " + k, Err: err}
			}
		}
	}
	if err := vm.Set("context", vars); err != nil {
		return false, ExpressionError{Expression: expression, Message: "binding context", Err: err}
	}
	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt("evaluation timed out")
	})
	defer timer.Stop()

	value, err := vm.RunProgram(program)
	if err != nil {
		return false, ExpressionError{Expression: expression, Message: "evaluation failed", Err: err}
	}
	result, ok := value.Export().(bool)
	if !ok {
		return false, ExpressionError{Expression: expression, Message: fmt.Sprintf("expected a boolean result, got %v", value.Export())}
	}
	return result, nil
}
