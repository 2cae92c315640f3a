package services

import (
	"context"
	"time"

	"carteira/internal/core"
)

// RetryPolicy bounds how reads are retried when the store is unavailable.
// Writes are never retried here: a failed unit may or may not have reached
// the store.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// backoff returns the delay before retry number attempt (0-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retryRead runs fn until it succeeds, fails with an error other than
// store_unavailable, or the attempts run out.
func retryRead[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = fn()
		if err == nil || !core.IsKind(err, core.KindStoreUnavailable) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, core.Unavailable("read", ctx.Err())
		case <-timer.C:
		}
	}
	return result, err
}
