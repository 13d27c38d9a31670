package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohitkumar/wfhammer/action"
)

var _ action.UserInputProvider = new(stdinInput)
var _ action.PromptInvoker = new(commandInvoker)

// stdinInput reads answers on one long-lived goroutine. A line typed after a cancelled prompt
// is kept for the next one.
type stdinInput struct {
	mu     sync.Mutex
	once   sync.Once
	reader *bufio.Reader
	lines  chan inputLine
	out    io.Writer
}

type inputLine struct {
	text string
	err  error
}

func newStdinInput(in io.Reader, out io.Writer) *stdinInput {
	return &stdinInput{reader: bufio.NewReader(in), lines: make(chan inputLine), out: out}
}

func (s *stdinInput) readLines() {
	defer close(s.lines)
	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		s.lines <- inputLine{strings.TrimRight(line, "\r\n"), err}
		if err != nil {
			return
		}
	}
}

func (s *stdinInput) AwaitInput(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.once.Do(func() {
		go s.readLines()
	})
	fmt.Fprintf(s.out, "%s\n> ", message)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

// commandInvoker runs an external program once per prompt: the prompt name is the first argument
// followed by sorted key=value arguments. Stdout is the prompt output.
type commandInvoker struct {
	command string
}

func newCommandInvoker(command string) *commandInvoker {
	return &commandInvoker{command: command}
}

func (c *commandInvoker) RenderAndInvoke(ctx context.Context, promptName string, arguments map[string]string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	args := []string{promptName}
	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+arguments[k])
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", action.NewTimeoutError(timeout)
		}
		return "", &action.ActionError{Kind: action.CLAUDE_ERROR, Message: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}
