package action

import (
	"fmt"
	"time"
)

type LogLevel string

const LOG_LEVEL_INFO LogLevel = "info"
const LOG_LEVEL_WARNING LogLevel = "warning"
const LOG_LEVEL_ERROR LogLevel = "error"

// ActionSpec is the parsed, not yet bound form of an action description. Only the fields of
// its Type are meaningful.
type ActionSpec struct {
	Type           ActionType        `json:"type"`
	PromptName     string            `json:"promptName,omitempty"`
	Arguments      map[string]string `json:"arguments,omitempty"`
	ResultVariable string            `json:"resultVariable,omitempty"`
	Timeout        time.Duration     `json:"timeout,omitempty"`
	Duration       time.Duration     `json:"duration,omitempty"`
	WaitForUser    bool              `json:"waitForUser,omitempty"`
	Message        string            `json:"message,omitempty"`
	Level          LogLevel          `json:"level,omitempty"`
	VariableName   string            `json:"variableName,omitempty"`
	Value          string            `json:"value,omitempty"`
	WorkflowName   string            `json:"workflowName,omitempty"`
}

// NewAction binds a spec to its collaborators.
func NewAction(spec ActionSpec, collab Collaborators) (Action, error) {
	sub := collab.substitutor()
	switch spec.Type {
	case ACTION_TYPE_LOG:
		return NewLogAction(spec.Level, spec.Message, sub), nil
	case ACTION_TYPE_SET_VARIABLE:
		return NewSetVariableAction(spec.VariableName, spec.Value, sub), nil
	case ACTION_TYPE_WAIT:
		if spec.WaitForUser {
			return NewUserInputWaitAction(spec.Message, collab.UserInput, sub), nil
		}
		return NewWaitAction(spec.Duration, spec.Message, sub), nil
	case ACTION_TYPE_PROMPT:
		if collab.Prompts == nil {
			return nil, NewActionError(EXECUTION_ERROR, "no prompt invoker configured")
		}
		timeout := spec.Timeout
		if timeout <= 0 {
			timeout = collab.PromptTimeout
		}
		act := NewPromptAction(spec.PromptName, spec.Arguments, collab.Prompts, sub)
		act.ResultVariable = spec.ResultVariable
		act.Limiter = collab.PromptLimiter
		if timeout > 0 {
			act.Timeout = timeout
		}
		if collab.PromptRetry.Strategy != "" {
			act.RetryPolicy = collab.PromptRetry
		}
		return act, nil
	case ACTION_TYPE_SUB_WORKFLOW:
		if collab.SubWorkflows == nil {
			return nil, NewActionError(EXECUTION_ERROR, "no sub-workflow runner configured")
		}
		act := NewSubWorkflowAction(spec.WorkflowName, spec.Arguments, collab.SubWorkflows, sub)
		act.ResultVariable = spec.ResultVariable
		if spec.Timeout > 0 {
			act.Timeout = spec.Timeout
		}
		return act, nil
	case ACTION_TYPE_ABORT:
		return NewAbortAction(spec.Message, sub), nil
	}
	return nil, NewParseError("unknown action type '%s'", spec.Type)
}

func (s ActionSpec) String() string {
	switch s.Type {
	case ACTION_TYPE_PROMPT:
		return fmt.Sprintf("prompt %q", s.PromptName)
	case ACTION_TYPE_SUB_WORKFLOW:
		return fmt.Sprintf("sub workflow %q", s.WorkflowName)
	case ACTION_TYPE_SET_VARIABLE:
		return fmt.Sprintf("set %s", s.VariableName)
	case ACTION_TYPE_WAIT:
		if s.WaitForUser {
			return "wait for user input"
		}
		return fmt.Sprintf("wait %v", s.Duration)
	}
	return string(s.Type)
}
