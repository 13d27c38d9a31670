package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strings"
	"time"
)

type ErrorKind string

const CLAUDE_ERROR ErrorKind = "CLAUDE_ERROR"
const VARIABLE_ERROR ErrorKind = "VARIABLE_ERROR"
const PARSE_ERROR ErrorKind = "PARSE_ERROR"
const TIMEOUT ErrorKind = "TIMEOUT"
const EXECUTION_ERROR ErrorKind = "EXECUTION_ERROR"
const IO_ERROR ErrorKind = "IO_ERROR"
const JSON_ERROR ErrorKind = "JSON_ERROR"
const RATE_LIMIT ErrorKind = "RATE_LIMIT"
const ABORT ErrorKind = "ABORT"

type ActionError struct {
	Kind     ErrorKind
	Message  string
	Timeout  time.Duration
	WaitTime time.Duration
	Attempts int
	Err      error
}

func (e *ActionError) Error() string {
	switch e.Kind {
	case TIMEOUT:
		return fmt.Sprintf("action timed out after %v", e.Timeout)
	case RATE_LIMIT:
		return fmt.Sprintf("rate limited: %s (retry after %v)", e.Message, e.WaitTime)
	case ABORT:
		return fmt.Sprintf("workflow aborted: %s", e.Message)
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")), msg)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func NewActionError(kind ErrorKind, message string) *ActionError {
	return &ActionError{Kind: kind, Message: message}
}

func NewParseError(format string, args ...any) *ActionError {
	return &ActionError{Kind: PARSE_ERROR, Message: fmt.Sprintf(format, args...)}
}

func NewTimeoutError(timeout time.Duration) *ActionError {
	return &ActionError{Kind: TIMEOUT, Timeout: timeout, Err: context.DeadlineExceeded}
}

func NewRateLimitError(message string, waitTime time.Duration) *ActionError {
	return &ActionError{Kind: RATE_LIMIT, Message: message, WaitTime: waitTime}
}

func NewAbortError(message string) *ActionError {
	return &ActionError{Kind: ABORT, Message: message}
}

func ErrorKindOf(err error) (ErrorKind, bool) {
	var actErr *ActionError
	if errors.As(err, &actErr) {
		return actErr.Kind, true
	}
	return "", false
}

// RetriesOf returns how many times a failed action was retried before giving up.
func RetriesOf(err error) int {
	var actErr *ActionError
	if errors.As(err, &actErr) && actErr.Attempts > 1 {
		return actErr.Attempts - 1
	}
	return 0
}

func IsAbortError(err error) bool {
	kind, ok := ErrorKindOf(err)
	return ok && kind == ABORT
}

// classifyError maps a collaborator failure onto the action error taxonomy.
func classifyError(err error, timeout time.Duration) error {
	var actErr *ActionError
	if errors.As(err, &actErr) {
		return err
	}
	if IsAbortMarker(err.Error()) {
		return NewAbortError(err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(timeout)
	}
	var netErr net.Error
	var pathErr *fs.PathError
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &pathErr) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ActionError{Kind: IO_ERROR, Err: err}
	}
	return &ActionError{Kind: CLAUDE_ERROR, Err: err}
}
