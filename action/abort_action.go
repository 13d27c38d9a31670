package action

import (
	"context"
	"fmt"

	"github.com/mohitkumar/wfhammer/util"
)

var _ Action = new(AbortAction)

type AbortAction struct {
	baseAction
	Message string
}

func NewAbortAction(message string, substitutor util.Substitutor) *AbortAction {
	return &AbortAction{
		baseAction: newBaseAction(ACTION_TYPE_ABORT, substitutor),
		Message:    message,
	}
}

func (a *AbortAction) Description() string {
	return fmt.Sprintf("Abort: %s", a.Message)
}

func (a *AbortAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	return nil, NewAbortError(a.substitute(a.Message, vars))
}
