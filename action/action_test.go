package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	mu        sync.Mutex
	calls     int
	responses []func() (string, error)
	lastArgs  map[string]string
}

func (f *fakeInvoker) RenderAndInvoke(ctx context.Context, promptName string, arguments map[string]string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastArgs = arguments
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]()
}

func respond(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func fastPrompt(invoker PromptInvoker) *PromptAction {
	act := NewPromptAction("review", map[string]string{"file": "${current_file}"}, invoker, nil)
	act.RetryPolicy = RetryPolicy{
		Retries:         3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		Strategy:        RETRY_STRATEGY_EXPONENTIAL,
	}
	return act
}

func TestLogAction(t *testing.T) {
	vars := map[string]any{"current_file": "test.rs"}
	result, err := Info("File: ${current_file}").Execute(context.Background(), vars)
	require.NoError(t, err)
	require.Equal(t, "File: test.rs", result)
	require.Equal(t, true, vars[model.LAST_ACTION_RESULT_KEY])

	result, err = Warning("Missing: ${nope}").Execute(context.Background(), vars)
	require.NoError(t, err)
	require.Equal(t, "Missing: ${nope}", result)
	require.Equal(t, "Log message: File: ${current_file}", Info("File: ${current_file}").Description())
}

func TestSetVariableAction(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, vars map[string]any){
		"plain string": func(t *testing.T, vars map[string]any) {
			_, err := NewSetVariableAction("status", "done", nil).Execute(context.Background(), vars)
			require.NoError(t, err)
			require.Equal(t, "done", vars["status"])
		},
		"json value": func(t *testing.T, vars map[string]any) {
			_, err := NewSetVariableAction("count", "3", nil).Execute(context.Background(), vars)
			require.NoError(t, err)
			require.Equal(t, float64(3), vars["count"])
		},
		"substituted value": func(t *testing.T, vars map[string]any) {
			_, err := NewSetVariableAction("greeting", "hello ${name}", nil).Execute(context.Background(), vars)
			require.NoError(t, err)
			require.Equal(t, "hello world", vars["greeting"])
		},
		"idempotent": func(t *testing.T, vars map[string]any) {
			act := NewSetVariableAction("status", "done", nil)
			_, err := act.Execute(context.Background(), vars)
			require.NoError(t, err)
			first := model.CloneVars(vars)
			_, err = act.Execute(context.Background(), vars)
			require.NoError(t, err)
			require.Equal(t, first, vars)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, map[string]any{"name": "world"})
		})
	}
}

func TestWaitAction(t *testing.T) {
	act := NewWaitAction(100*time.Millisecond, "", nil)
	start := time.Now()
	_, err := act.Execute(context.Background(), map[string]any{})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	require.Less(t, elapsed, time.Second)
	require.Equal(t, "Wait for 100ms", act.Description())
}

func TestWaitActionObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewWaitAction(5*time.Second, "", nil).Execute(ctx, map[string]any{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

type fakeInput struct {
	answer string
	block  bool
}

func (f *fakeInput) AwaitInput(ctx context.Context, message string) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, nil
}

func TestUserInputWait(t *testing.T) {
	vars := map[string]any{}
	result, err := NewUserInputWaitAction("continue?", &fakeInput{answer: "yes"}, nil).Execute(context.Background(), vars)
	require.NoError(t, err)
	require.Equal(t, "yes", result)

	act := NewUserInputWaitAction("continue?", &fakeInput{block: true}, nil)
	act.InputTimeout = 10 * time.Millisecond
	_, err = act.Execute(context.Background(), vars)
	kind, _ := ErrorKindOf(err)
	require.Equal(t, TIMEOUT, kind)

	_, err = NewUserInputWaitAction("continue?", nil, nil).Execute(context.Background(), vars)
	require.Error(t, err)
}

func TestPromptAction(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"stores result": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){respond("looks good")}}
			act := fastPrompt(invoker)
			act.ResultVariable = "review"
			vars := map[string]any{"current_file": "test.rs"}
			result, err := act.Execute(context.Background(), vars)
			require.NoError(t, err)
			require.Equal(t, "looks good", result)
			require.Equal(t, "looks good", vars["review"])
			require.Equal(t, "looks good", vars[model.CLAUDE_RESPONSE_KEY])
			require.Equal(t, map[string]string{"file": "test.rs"}, invoker.lastArgs)
		},
		"abort marker at start aborts": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){respond("ABORT ERROR: cannot continue")}}
			_, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			require.True(t, IsAbortError(err))
			require.Equal(t, 1, invoker.calls)
		},
		"abort marker mid string does not abort": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){respond("note: ABORT ERROR: is only a quote")}}
			result, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			require.NoError(t, err)
			require.Equal(t, "note: ABORT ERROR: is only a quote", result)
		},
		"lower case marker does not abort": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){respond("abort error: nope")}}
			_, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			require.NoError(t, err)
		},
		"rate limit is retried then succeeds": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){
				fail(NewRateLimitError("slow down", time.Millisecond)),
				respond("done"),
			}}
			result, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			require.NoError(t, err)
			require.Equal(t, "done", result)
			require.Equal(t, 2, invoker.calls)
		},
		"transient errors stop at max retries": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){fail(context.DeadlineExceeded)}}
			_, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			kind, _ := ErrorKindOf(err)
			require.Equal(t, TIMEOUT, kind)
			require.Equal(t, 4, invoker.calls)
		},
		"external failure is not retried": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){fail(errors.New("model refused"))}}
			_, err := fastPrompt(invoker).Execute(context.Background(), map[string]any{})
			kind, _ := ErrorKindOf(err)
			require.Equal(t, CLAUDE_ERROR, kind)
			require.Equal(t, 1, invoker.calls)
		},
		"malformed argument key": func(t *testing.T) {
			invoker := &fakeInvoker{responses: []func() (string, error){respond("x")}}
			act := fastPrompt(invoker)
			act.Arguments["bad key"] = "v"
			_, err := act.Execute(context.Background(), map[string]any{})
			kind, _ := ErrorKindOf(err)
			require.Equal(t, PARSE_ERROR, kind)
			require.Equal(t, 0, invoker.calls)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestRetry(t *testing.T) {
	policy := &RetryPolicy{Retries: 3, InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 4 * time.Millisecond, Strategy: RETRY_STRATEGY_EXPONENTIAL}
	for scenario, fn := range map[string]func(t *testing.T){
		"transient error uses every retry": func(t *testing.T) {
			attempts, err := Retry(context.Background(), policy, func(int) error {
				return &ActionError{Kind: IO_ERROR, Message: "pipe closed"}
			})
			require.Error(t, err)
			require.Equal(t, policy.MaxRetries()+1, attempts)
		},
		"parse error is attempted once": func(t *testing.T) {
			attempts, err := Retry(context.Background(), policy, func(int) error {
				return NewParseError("bad syntax")
			})
			kind, _ := ErrorKindOf(err)
			require.Equal(t, PARSE_ERROR, kind)
			require.Equal(t, 1, attempts)
		},
		"abort is attempted once": func(t *testing.T) {
			attempts, err := Retry(context.Background(), policy, func(int) error {
				return NewAbortError("stop")
			})
			require.True(t, IsAbortError(err))
			require.Equal(t, 1, attempts)
		},
		"success after transient": func(t *testing.T) {
			attempts, err := Retry(context.Background(), policy, func(attempt int) error {
				if attempt < 3 {
					return NewTimeoutError(time.Millisecond)
				}
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, 3, attempts)
		},
		"cancelled context stops retrying": func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			slow := &RetryPolicy{Retries: 5, InitialInterval: time.Hour, Strategy: RETRY_STRATEGY_WAIT_FOR_WINDOW}
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			attempts, err := Retry(ctx, slow, func(int) error {
				return NewTimeoutError(time.Millisecond)
			})
			require.ErrorIs(t, err, context.Canceled)
			require.Equal(t, 1, attempts)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestCalculateWaitTime(t *testing.T) {
	policy := &RetryPolicy{InitialInterval: 100 * time.Millisecond, Multiplier: 2, MaxInterval: time.Second, Strategy: RETRY_STRATEGY_EXPONENTIAL}
	timeout := NewTimeoutError(time.Second)
	require.Equal(t, 100*time.Millisecond, policy.CalculateWaitTime(timeout, 1))
	require.Equal(t, 200*time.Millisecond, policy.CalculateWaitTime(timeout, 2))
	require.Equal(t, 400*time.Millisecond, policy.CalculateWaitTime(timeout, 3))
	require.Equal(t, time.Second, policy.CalculateWaitTime(timeout, 10))

	rateLimited := fmt.Errorf("wrapped: %w", NewRateLimitError("quota", 42*time.Second))
	require.Equal(t, 42*time.Second, policy.CalculateWaitTime(rateLimited, 1))

	window := &RetryPolicy{InitialInterval: 3 * time.Second, Strategy: RETRY_STRATEGY_WAIT_FOR_WINDOW}
	require.Equal(t, 3*time.Second, window.CalculateWaitTime(timeout, 5))
	require.False(t, policy.IsRetryableError(NewParseError("x")))
	require.False(t, policy.IsRetryableError(errors.New("plain")))
	require.True(t, policy.IsRetryableError(rateLimited))
}

func TestAbortMarker(t *testing.T) {
	require.True(t, IsAbortMarker("ABORT ERROR: stop"))
	require.False(t, IsAbortMarker(" ABORT ERROR: stop"))
	require.False(t, IsAbortMarker("result: ABORT ERROR: stop"))
	require.False(t, IsAbortMarker("Abort Error: stop"))
}

type fakeRunner struct {
	final map[string]any
	err   error
	input map[string]any
}

func (f *fakeRunner) RunSubWorkflow(ctx context.Context, name string, vars map[string]any) (map[string]any, error) {
	f.input = vars
	return f.final, f.err
}

func TestSubWorkflowAction(t *testing.T) {
	runner := &fakeRunner{final: map[string]any{
		"summary":                    "ok",
		model.LAST_ACTION_RESULT_KEY: true,
		model.WORKFLOW_STACK_KEY:     []any{"parent", "child"},
	}}
	act := NewSubWorkflowAction("child", map[string]string{"target": "${env}"}, runner, nil)
	vars := map[string]any{"env": "prod", model.WORKFLOW_STACK_KEY: []any{"parent"}}
	_, err := act.Execute(context.Background(), vars)
	require.NoError(t, err)
	require.Equal(t, "prod", runner.input["target"])
	require.Equal(t, []any{"parent"}, runner.input[model.WORKFLOW_STACK_KEY])
	require.Equal(t, map[string]any{"summary": "ok"}, vars["child_result"])

	failing := NewSubWorkflowAction("child", nil, &fakeRunner{err: errors.New("boom")}, nil)
	_, err = failing.Execute(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestNewAction(t *testing.T) {
	spec, err := ParseActionSpec(`Log "hi"`)
	require.NoError(t, err)
	act, err := NewAction(*spec, Collaborators{})
	require.NoError(t, err)
	require.Equal(t, ACTION_TYPE_LOG, act.GetType())

	spec, err = ParseActionSpec(`Execute prompt "x"`)
	require.NoError(t, err)
	_, err = NewAction(*spec, Collaborators{})
	require.Error(t, err)

	spec, err = ParseActionSpec(`Abort "enough"`)
	require.NoError(t, err)
	act, err = NewAction(*spec, Collaborators{})
	require.NoError(t, err)
	_, err = act.Execute(context.Background(), map[string]any{})
	require.True(t, IsAbortError(err))
}
