package action

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

var _ Action = new(WaitAction)

// WaitAction sleeps for a fixed duration, or blocks on user input when Input is set.
type WaitAction struct {
	baseAction
	Duration     time.Duration
	Message      string
	WaitForUser  bool
	Input        UserInputProvider
	InputTimeout time.Duration
}

func NewWaitAction(duration time.Duration, message string, substitutor util.Substitutor) *WaitAction {
	return &WaitAction{
		baseAction: newBaseAction(ACTION_TYPE_WAIT, substitutor),
		Duration:   duration,
		Message:    message,
	}
}

func NewUserInputWaitAction(message string, input UserInputProvider, substitutor util.Substitutor) *WaitAction {
	return &WaitAction{
		baseAction:   newBaseAction(ACTION_TYPE_WAIT, substitutor),
		Message:      message,
		WaitForUser:  true,
		Input:        input,
		InputTimeout: DEFAULT_USER_INPUT_TIMEOUT,
	}
}

func (a *WaitAction) Description() string {
	if a.WaitForUser {
		return "Wait for user input"
	}
	return fmt.Sprintf("Wait for %v", a.Duration)
}

func (a *WaitAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	message := a.substitute(a.Message, vars)
	if message != "" && !model.IsQuiet(vars) {
		logger.Info(message, zap.String("action", string(a.actType)))
	}
	if a.WaitForUser {
		return a.awaitUser(ctx, message, vars)
	}
	timer := time.NewTimer(a.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	markSuccess(vars)
	return nil, nil
}

func (a *WaitAction) awaitUser(ctx context.Context, message string, vars map[string]any) (any, error) {
	if a.Input == nil {
		return nil, NewActionError(EXECUTION_ERROR, "no user input provider configured")
	}
	inputCtx, cancel := context.WithTimeout(ctx, a.InputTimeout)
	defer cancel()
	input, err := a.Input.AwaitInput(inputCtx, message)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if inputCtx.Err() != nil {
			return nil, NewTimeoutError(a.InputTimeout)
		}
		return nil, &ActionError{Kind: IO_ERROR, Err: err}
	}
	markSuccess(vars)
	return input, nil
}
