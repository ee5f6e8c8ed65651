package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
)

// RetryPolicy retries transient failures a fixed number of times with a fixed
// delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay}
}

type retryHooks struct {
	log     *logger.Logger
	metrics RegistryMetrics
}

// retry returns the result, the number of attempts made and a classified
// error.
func retry[T any](ctx context.Context, policy RetryPolicy, hooks retryHooks, operation string, op func(context.Context) (T, error)) (T, int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		err = classifyRemote(err)
		if !domain.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			hooks.log.Warn("retrying ledger call", "operation", operation, "attempt", attempts, "next_in", next, "error", err)
			if hooks.metrics != nil {
				hooks.metrics.ObserveRetry(operation)
			}
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return result, attempts, classifyRemote(err)
}
