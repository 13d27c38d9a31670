package executor

import (
	"errors"
	"fmt"

	"github.com/mohitkumar/wfhammer/action"
)

type ErrorKind string

const STATE_NOT_FOUND ErrorKind = "STATE_NOT_FOUND"
const INVALID_TRANSITION ErrorKind = "INVALID_TRANSITION"
const VALIDATION_FAILED ErrorKind = "VALIDATION_FAILED"
const TRANSITION_LIMIT_EXCEEDED ErrorKind = "TRANSITION_LIMIT_EXCEEDED"
const EXECUTION_FAILED ErrorKind = "EXECUTION_FAILED"
const WORKFLOW_COMPLETED ErrorKind = "WORKFLOW_COMPLETED"
const EXPRESSION_ERROR ErrorKind = "EXPRESSION_ERROR"
const ACTION_ERROR ErrorKind = "ACTION_ERROR"
const ABORTED ErrorKind = "ABORTED"
const CANCELLED ErrorKind = "CANCELLED"
const PAUSED ErrorKind = "PAUSED"
const CIRCULAR_DEPENDENCY ErrorKind = "CIRCULAR_DEPENDENCY"

// ErrPauseRequested is the cancel cause that parks a run as PAUSED instead of CANCELLED.
var ErrPauseRequested = errors.New("pause requested")

type ExecutorError struct {
	Kind    ErrorKind
	Message string
	Limit   int
	Err     error
}

func (e *ExecutorError) Error() string {
	switch e.Kind {
	case TRANSITION_LIMIT_EXCEEDED:
		return fmt.Sprintf("transition limit exceeded: %d", e.Limit)
	case ACTION_ERROR, ABORTED:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
		}
	}
	return e.Message
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *ExecutorError {
	return &ExecutorError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *ExecutorError {
	return &ExecutorError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func KindOf(err error) (ErrorKind, bool) {
	var execErr *ExecutorError
	if errors.As(err, &execErr) {
		return execErr.Kind, true
	}
	return "", false
}

// IsAbort reports whether err comes from an abort, directly or through a nested workflow.
func IsAbort(err error) bool {
	if kind, ok := KindOf(err); ok && kind == ABORTED {
		return true
	}
	return action.IsAbortError(err)
}
