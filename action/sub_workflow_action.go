package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
)

var _ Action = new(SubWorkflowAction)

type SubWorkflowAction struct {
	baseAction
	WorkflowName   string
	Input          map[string]string
	ResultVariable string
	Timeout        time.Duration
	runner         SubWorkflowRunner
}

func NewSubWorkflowAction(workflowName string, input map[string]string, runner SubWorkflowRunner, substitutor util.Substitutor) *SubWorkflowAction {
	if input == nil {
		input = map[string]string{}
	}
	return &SubWorkflowAction{
		baseAction:   newBaseAction(ACTION_TYPE_SUB_WORKFLOW, substitutor),
		WorkflowName: workflowName,
		Input:        input,
		Timeout:      DEFAULT_SUB_WORKFLOW_TIMEOUT,
		runner:       runner,
	}
}

func (a *SubWorkflowAction) Description() string {
	return fmt.Sprintf("Run workflow '%s'", a.WorkflowName)
}

func (a *SubWorkflowAction) resultKey() string {
	if a.ResultVariable != "" {
		return a.ResultVariable
	}
	return a.WorkflowName + "_result"
}

// Execute runs the nested workflow with the substituted input plus the caller's workflow stack,
// then stores the nested run's non reserved variables under the result key.
func (a *SubWorkflowAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	input := make(map[string]any, len(a.Input)+1)
	for k, v := range a.substituteAll(a.Input, vars) {
		input[k] = v
	}
	if stack, ok := vars[model.WORKFLOW_STACK_KEY]; ok {
		input[model.WORKFLOW_STACK_KEY] = stack
	}
	if quiet, ok := vars[model.QUIET_KEY]; ok {
		input[model.QUIET_KEY] = quiet
	}

	subCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	final, err := a.runner.RunSubWorkflow(subCtx, a.WorkflowName, input)
	if err != nil {
		if ctx.Err() == nil && errors.Is(subCtx.Err(), context.DeadlineExceeded) {
			return nil, NewTimeoutError(a.Timeout)
		}
		return nil, err
	}
	result := make(map[string]any)
	for k, v := range final {
		if !model.IsReservedKey(k) {
			result[k] = v
		}
	}
	vars[a.resultKey()] = result
	markSuccess(vars)
	return result, nil
}
