package action

import (
	"context"
	"time"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
	"golang.org/x/time/rate"
)

type ActionType string

const ACTION_TYPE_PROMPT ActionType = "prompt"
const ACTION_TYPE_WAIT ActionType = "wait"
const ACTION_TYPE_LOG ActionType = "log"
const ACTION_TYPE_SET_VARIABLE ActionType = "set_variable"
const ACTION_TYPE_SUB_WORKFLOW ActionType = "sub_workflow"
const ACTION_TYPE_ABORT ActionType = "abort"

const DEFAULT_PROMPT_TIMEOUT = 300 * time.Second
const DEFAULT_SUB_WORKFLOW_TIMEOUT = 600 * time.Second
const DEFAULT_USER_INPUT_TIMEOUT = 300 * time.Second

type Action interface {
	GetType() ActionType
	Description() string
	Execute(ctx context.Context, vars map[string]any) (any, error)
}

// PromptInvoker renders a named prompt with arguments and returns the model output.
type PromptInvoker interface {
	RenderAndInvoke(ctx context.Context, promptName string, arguments map[string]string, timeout time.Duration) (string, error)
}

// SubWorkflowRunner runs a nested workflow to completion and returns its final context.
type SubWorkflowRunner interface {
	RunSubWorkflow(ctx context.Context, name string, vars map[string]any) (map[string]any, error)
}

type UserInputProvider interface {
	AwaitInput(ctx context.Context, message string) (string, error)
}

// Collaborators are the external services concrete actions call into.
type Collaborators struct {
	Prompts       PromptInvoker
	SubWorkflows  SubWorkflowRunner
	UserInput     UserInputProvider
	Substitutor   util.Substitutor
	PromptLimiter *rate.Limiter
	PromptRetry   RetryPolicy
	PromptTimeout time.Duration
}

func (c Collaborators) substitutor() util.Substitutor {
	if c.Substitutor == nil {
		return util.NewVariableSubstitutor()
	}
	return c.Substitutor
}

type baseAction struct {
	actType     ActionType
	substitutor util.Substitutor
}

func newBaseAction(actType ActionType, substitutor util.Substitutor) baseAction {
	if substitutor == nil {
		substitutor = util.NewVariableSubstitutor()
	}
	return baseAction{
		actType:     actType,
		substitutor: substitutor,
	}
}

func (ba *baseAction) GetType() ActionType {
	return ba.actType
}

func (ba *baseAction) substitute(template string, vars map[string]any) string {
	return ba.substitutor.Substitute(template, vars)
}

func (ba *baseAction) substituteAll(args map[string]string, vars map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = ba.substitute(v, vars)
	}
	return out
}

func markSuccess(vars map[string]any) {
	vars[model.LAST_ACTION_RESULT_KEY] = true
}
