package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"vidiwise/internal/domain"
)

// RetryPolicy bounds how often a submission is retried after a transient failure.
// The zero value performs a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff doubles from Backoff, capped at MaxBackoff, for at most
// MaxAttempts-1 retries.
func (p RetryPolicy) backoff() retry.Backoff {
	var b retry.Backoff
	if p.Backoff > 0 {
		b = retry.NewExponential(p.Backoff)
		if p.MaxBackoff > 0 {
			b = retry.WithCappedDuration(p.MaxBackoff, b)
		}
	} else {
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	return retry.WithMaxRetries(uint64(p.attempts()-1), b)
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts are used up. When ctx ends during a backoff the last failure is
// returned rather than the context error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		last = fn(ctx)
		if last != nil && retryable(last) {
			return retry.RetryableError(last)
		}
		return last
	})
	if err != nil && last != nil && ctx.Err() != nil {
		return last
	}
	return err
}

// retryable accepts transport failures and 5xx answers only; a rejected
// request would be rejected again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *domain.RemoteError
	if errors.As(err, &re) {
		return re.Temporary()
	}
	return false
}
