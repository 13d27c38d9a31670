package action

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mohitkumar/wfhammer/logger"
	"go.uber.org/zap"
)

type RetryStrategy string

const RETRY_STRATEGY_EXPONENTIAL RetryStrategy = "EXPONENTIAL_BACKOFF"
const RETRY_STRATEGY_WAIT_FOR_WINDOW RetryStrategy = "WAIT_FOR_WINDOW"

// RetryableAction is implemented by actions whose failures may be transient.
type RetryableAction interface {
	MaxRetries() int
	IsRetryableError(err error) bool
	CalculateWaitTime(err error, attempt int) time.Duration
	RetryStrategy() RetryStrategy
}

type RetryPolicy struct {
	Retries         int           `json:"maxRetries"`
	InitialInterval time.Duration `json:"initialInterval"`
	MaxInterval     time.Duration `json:"maxInterval"`
	Multiplier      float64       `json:"multiplier"`
	Strategy        RetryStrategy `json:"strategy"`
}

var _ RetryableAction = new(RetryPolicy)

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:         2,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Strategy:        RETRY_STRATEGY_EXPONENTIAL,
	}
}

func (p *RetryPolicy) MaxRetries() int {
	return p.Retries
}

func (p *RetryPolicy) RetryStrategy() RetryStrategy {
	return p.Strategy
}

// IsRetryableError accepts only rate limiting, timeouts and I/O failures.
func (p *RetryPolicy) IsRetryableError(err error) bool {
	kind, ok := ErrorKindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case RATE_LIMIT, TIMEOUT, IO_ERROR:
		return true
	}
	return false
}

// CalculateWaitTime honours an explicit rate limit wait, otherwise applies the configured strategy.
// attempt starts at 1 for the first retry.
func (p *RetryPolicy) CalculateWaitTime(err error, attempt int) time.Duration {
	var actErr *ActionError
	if errors.As(err, &actErr) && actErr.Kind == RATE_LIMIT && actErr.WaitTime > 0 {
		return actErr.WaitTime
	}
	if attempt < 1 {
		attempt = 1
	}
	if p.Strategy == RETRY_STRATEGY_WAIT_FOR_WINDOW {
		return p.InitialInterval
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait := float64(p.InitialInterval) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxInterval > 0 && wait > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(wait)
}

// errorBackOff asks the retryable action for the wait that matches the last error.
type errorBackOff struct {
	retryable RetryableAction
	lastErr   error
	retries   int
}

func (b *errorBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.retryable.CalculateWaitTime(b.lastErr, b.retries)
}

func (b *errorBackOff) Reset() {
	b.retries = 0
}

// Retry runs op until it succeeds, fails with a non retryable error, or exhausts MaxRetries.
// It returns the number of attempts made.
func Retry(ctx context.Context, r RetryableAction, op func(attempt int) error) (int, error) {
	attempts := 0
	b := &errorBackOff{retryable: r}
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(attempts)
		b.lastErr = err
		if err != nil && !r.IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying action", zap.Int("attempt", attempts), zap.Duration("wait", wait), zap.Error(err))
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(r.MaxRetries(), 0))), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	return attempts, err
}
