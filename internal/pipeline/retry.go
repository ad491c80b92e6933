package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// RetryPolicy bounds exponential backoff for one class of call.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy retries upstream calls up to three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 1 {
		exp.Multiplier = p.Multiplier
	}
	// The unit deadline bounds total time.
	exp.MaxElapsedTime = 0
	exp.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// retry calls fn until it succeeds, returns an error that retryable rejects,
// or the policy is exhausted. It returns the number of attempts made.
func retry[T any](
	ctx context.Context,
	p RetryPolicy,
	retryable func(error) bool,
	onRetry func(err error, wait time.Duration),
	fn func(context.Context) (T, error),
) (T, int, error) {
	var (
		out      T
		attempts int
	)
	op := func() error {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}
	err := backoff.RetryNotify(op, p.backOff(ctx), onRetry)
	return out, attempts, err
}

// retryableUpstream accepts only transient provider failures.
func retryableUpstream(err error) bool {
	return domain.IsRetryable(err)
}

// retryableStore accepts any store failure while the context is live.
func retryableStore(err error) bool {
	return domain.Classify(err) == domain.CategoryStore
}
