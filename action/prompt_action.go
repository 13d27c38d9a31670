package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ Action = new(PromptAction)
var _ RetryableAction = new(PromptAction)

type PromptAction struct {
	baseAction
	RetryPolicy
	PromptName     string
	Arguments      map[string]string
	ResultVariable string
	Timeout        time.Duration
	Quiet          bool
	Limiter        *rate.Limiter
	invoker        PromptInvoker
}

func NewPromptAction(promptName string, arguments map[string]string, invoker PromptInvoker, substitutor util.Substitutor) *PromptAction {
	if arguments == nil {
		arguments = map[string]string{}
	}
	return &PromptAction{
		baseAction:  newBaseAction(ACTION_TYPE_PROMPT, substitutor),
		RetryPolicy: DefaultRetryPolicy(),
		PromptName:  promptName,
		Arguments:   arguments,
		Timeout:     DEFAULT_PROMPT_TIMEOUT,
		invoker:     invoker,
	}
}

func (a *PromptAction) Description() string {
	keys := make([]string, 0, len(a.Arguments))
	for k := range a.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, a.Arguments[k]))
	}
	return fmt.Sprintf("Execute prompt '%s' with arguments: %s", a.PromptName, strings.Join(args, ", "))
}

func (a *PromptAction) validateArguments() error {
	for k := range a.Arguments {
		if !argumentKeyPattern.MatchString(k) {
			return NewParseError("invalid argument key '%s'", k)
		}
	}
	return nil
}

// Execute invokes the prompt with retries. An output starting with the abort marker stops the
// run and is never retried.
func (a *PromptAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	if err := a.validateArguments(); err != nil {
		return nil, err
	}
	args := a.substituteAll(a.Arguments, vars)
	quiet := a.Quiet || model.IsQuiet(vars)

	var output string
	attempts, err := Retry(ctx, a, func(attempt int) error {
		if a.Limiter != nil {
			if err := a.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if !quiet {
			logger.Info("executing prompt", zap.String("prompt", a.PromptName), zap.Int("attempt", attempt))
		}
		attemptCtx, cancel := context.WithTimeout(ctx, a.Timeout)
		defer cancel()
		result, err := a.invoker.RenderAndInvoke(attemptCtx, a.PromptName, args, a.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classifyError(err, a.Timeout)
		}
		if IsAbortMarker(result) {
			return NewAbortError(strings.TrimSpace(strings.TrimPrefix(result, ABORT_ERROR_PREFIX)))
		}
		output = result
		return nil
	})
	if err != nil {
		logger.Debug("prompt failed", zap.String("prompt", a.PromptName), zap.Int("attempts", attempts), zap.Error(err))
		var actErr *ActionError
		if errors.As(err, &actErr) {
			actErr.Attempts = attempts
		}
		return nil, err
	}
	if a.ResultVariable != "" {
		vars[a.ResultVariable] = output
	}
	vars[model.CLAUDE_RESPONSE_KEY] = output
	markSuccess(vars)
	return output, nil
}
