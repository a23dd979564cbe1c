package probe

import (
	"context"
	"time"

	"github.com/hamed0406/topologycheck/internal/domain"
)

// RetryChecker re-runs Inner while it reports unhealthy, up to Attempts
// times, and returns the last verdict unchanged.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

var _ Checker = (*RetryChecker)(nil)

// WithRetries wraps c when attempts > 1; otherwise c is returned as is.
func WithRetries(c Checker, attempts int, backoff time.Duration) Checker {
	if attempts <= 1 {
		return c
	}
	return &RetryChecker{Inner: c, Attempts: attempts, Backoff: backoff}
}

func (r *RetryChecker) Check(ctx context.Context) domain.Verdict {
	attempts := max(r.Attempts, 1)
	var last domain.Verdict
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx)
		if last.Healthy || i == attempts-1 {
			return last
		}
		t := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
	return last
}
