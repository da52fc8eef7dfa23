package api

import (
	"context"
	"time"
)

// RetryPolicy controls how failed calls are retried. The schedule is linear:
// the wait before attempt n+1 is n x Delay. A server fault gets exactly one
// extra attempt after ServerCooldown instead of the linear wait.
type RetryPolicy struct {
	MaxAttempts    int
	Delay          time.Duration
	ServerCooldown time.Duration
}

// DefaultRetryPolicy returns the production schedule: 3 attempts, 1s linear
// step, 5s server cooldown.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Delay:          time.Second,
		ServerCooldown: 5 * time.Second,
	}
}

// Do runs fn until it succeeds, a non-retryable failure occurs, or the
// attempt ceiling is reached. All retry state is local to this call; the
// policy itself never mutates.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	serverRetried := false
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		switch KindOf(lastErr) {
		case KindNotFound, KindValidation:
			return lastErr
		case KindServer:
			if serverRetried {
				return lastErr
			}
			serverRetried = true
			if err := sleepCtx(ctx, p.ServerCooldown); err != nil {
				return err
			}
		default:
			if attempt >= p.MaxAttempts {
				return lastErr
			}
			if err := sleepCtx(ctx, time.Duration(attempt)*p.Delay); err != nil {
				return err
			}
		}
	}
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
