package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "notex/pkg/errors"
	"notex/pkg/logger"
	"notex/pkg/ratelimit"
)

// Operation is a single attempt against the conversion endpoint
type Operation func(ctx context.Context) error

// OperationWithResult is an attempt that produces a result
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// FinalError is a page's terminal failure: retries exhausted or a
// non-retryable error class. It wraps the last underlying failure.
type FinalError struct {
	Attempts int
	Err      error
}

func (e *FinalError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FinalError) Unwrap() error {
	return e.Err
}

// Policy holds retry configuration
type Policy struct {
	// MaxAttempts is the maximum number of attempts
	MaxAttempts int
	// Backoff computes inter-attempt delays
	Backoff BackoffStrategy
	// PerClass optionally overrides Backoff per error class
	PerClass *ClassBackoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns a retry policy with sensible defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
	}
}

// DefaultRetryIf retries transient and rate-limit classes only
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var convErr *errs.Error
	if errors.As(err, &convErr) {
		return errs.IsRetryable(convErr.Type)
	}

	// Unclassified errors are not retried: retrying consumes rate budget,
	// so only errors positively known to be transient or rate-limit earn
	// another attempt
	return false
}

// Executor wraps a single page's conversion call with bounded retry.
// Every attempt, including retries, individually acquires the shared rate
// limiter: retries consume rate budget like fresh calls.
type Executor struct {
	policy  *Policy
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewExecutor creates a retry executor gated by the given limiter
func NewExecutor(policy *Policy, limiter ratelimit.Limiter, log logger.Logger) *Executor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Executor{
		policy:  policy,
		limiter: limiter,
		logger:  log,
	}
}

// Do executes op with rate limiting and retry. On terminal failure the
// returned error is a *FinalError carrying the total attempt count.
func (e *Executor) Do(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Acquire(ctx); err != nil {
				if lastErr != nil {
					return &FinalError{Attempts: attempt - 1, Err: lastErr}
				}
				return fmt.Errorf("rate limiter wait cancelled: %w", err)
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		retryIf := e.policy.RetryIf
		if retryIf == nil {
			retryIf = DefaultRetryIf
		}
		if !retryIf(err) {
			e.logger.DebugWithFields("error is not retryable", map[string]interface{}{
				"error": err.Error(),
				"class": string(errs.TypeOf(err)),
			})
			return &FinalError{Attempts: attempt, Err: err}
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.backoffFor(err).NextDelay(attempt)

		if e.policy.OnRetry != nil {
			e.policy.OnRetry(attempt, err, delay)
		}
		e.logger.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": e.policy.MaxAttempts,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
		})

		if err := Wait(ctx, delay); err != nil {
			return &FinalError{Attempts: attempt, Err: lastErr}
		}
	}

	e.logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts":   e.policy.MaxAttempts,
		"last_error": lastErr.Error(),
	})
	return &FinalError{Attempts: e.policy.MaxAttempts, Err: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, e *Executor, op OperationWithResult[T]) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (e *Executor) backoffFor(err error) BackoffStrategy {
	if e.policy.PerClass != nil {
		return e.policy.PerClass.ForError(err)
	}
	if e.policy.Backoff != nil {
		return e.policy.Backoff
	}
	return DefaultExponentialBackoff()
}
