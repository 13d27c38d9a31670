package executor

import (
	"context"
	"strings"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
)

func workflowStack(vars map[string]any) []string {
	switch stack := vars[model.WORKFLOW_STACK_KEY].(type) {
	case []string:
		return append([]string(nil), stack...)
	case []any:
		out := make([]string, 0, len(stack))
		for _, v := range stack {
			if name, ok := v.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

// pushWorkflow appends name unless it is already on top, and returns the stack in its context form.
func pushWorkflow(stack []string, name string) []any {
	if len(stack) == 0 || stack[len(stack)-1] != name {
		stack = append(stack, name)
	}
	out := make([]any, len(stack))
	for i, s := range stack {
		out[i] = s
	}
	return out
}

func isNested(vars map[string]any) bool {
	return len(workflowStack(vars)) > 1
}

// RunSubWorkflow loads the named workflow and runs it to completion with vars as its initial
// context. Calling a workflow that is already on the caller's stack is refused.
func (e *WorkflowExecutor) RunSubWorkflow(ctx context.Context, name string, vars map[string]any) (map[string]any, error) {
	stack := workflowStack(vars)
	for _, caller := range stack {
		if caller == name {
			return nil, newError(CIRCULAR_DEPENDENCY, "circular workflow dependency: %s -> %s", strings.Join(stack, " -> "), name)
		}
	}
	if e.storage == nil {
		return nil, newError(EXECUTION_FAILED, "no workflow storage configured to load '%s'", name)
	}
	wf, err := e.storage.Load(name)
	if err != nil {
		return nil, wrapError(EXECUTION_FAILED, err, "loading workflow '%s': %s", name, err.Error())
	}
	logger.Debug("starting sub workflow", zap.String("workflow", name), zap.Strings("stack", stack))
	run, err := e.StartWorkflow(ctx, *wf, vars)
	if err != nil {
		return nil, err
	}
	if run.Status != model.COMPLETED {
		return nil, newError(EXECUTION_FAILED, "sub workflow '%s' ended with status %s", name, run.Status)
	}
	return run.Context, nil
}
