package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/topologycheck/internal/domain"
)

// AbsentTimestamp stands in for a service with no records. It is older than
// any real timestamp, so a missing source always wins the minimum.
const AbsentTimestamp int64 = math.MinInt64

// ServiceTimestamps queries every service concurrently. Each query is bounded
// by timeout; the first failure cancels the others and is returned.
func ServiceTimestamps(ctx context.Context, client Client, site string, services []string, timeout time.Duration) ([]domain.ServiceTimestamp, error) {
	out := make([]domain.ServiceTimestamp, len(services))
	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			return safely(func() error {
				qctx, cancel := withReadTimeout(gctx, timeout)
				defer cancel()
				ts, found, err := client.MaxTimestamp(qctx, svc, site)
				if err != nil {
					return fmt.Errorf("query %s: %w", svc, err)
				}
				out[i] = domain.ServiceTimestamp{Service: svc, Timestamp: ts, Found: found}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessTime is the oldest of the per-service timestamps, with absent
// services counted as AbsentTimestamp. No services at all is also absent.
func ProcessTime(stamps []domain.ServiceTimestamp) int64 {
	if len(stamps) == 0 {
		return AbsentTimestamp
	}
	oldest := int64(math.MaxInt64)
	for _, s := range stamps {
		ts := s.Timestamp
		if !s.Found {
			ts = AbsentTimestamp
		}
		if ts < oldest {
			oldest = ts
		}
	}
	return oldest
}

// lagMillis is now-ts, saturating at MaxInt64 instead of overflowing.
func lagMillis(now, ts int64) int64 {
	if ts < 0 && now > math.MaxInt64+ts {
		return math.MaxInt64
	}
	return now - ts
}

// FormatDelay renders a millisecond lag as hours, minutes and seconds. A
// negative lag (clock skew) is rendered as "-(...)".
func FormatDelay(ms int64) string {
	if ms < 0 {
		if ms == math.MinInt64 {
			return "-(" + FormatDelay(math.MaxInt64) + ")"
		}
		return "-(" + FormatDelay(-ms) + ")"
	}
	hours := ms / int64(time.Hour/time.Millisecond)
	ms -= hours * int64(time.Hour/time.Millisecond)
	minutes := ms / int64(time.Minute/time.Millisecond)
	ms -= minutes * int64(time.Minute/time.Millisecond)
	seconds := ms / int64(time.Second/time.Millisecond)
	return fmt.Sprintf("%d hours, %d minutes, %d seconds", hours, minutes, seconds)
}

func withReadTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// safely turns a panic in fn into an error carrying the panicking stack.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(describePanic(r))
		}
	}()
	return fn()
}

func describePanic(r any) string {
	return fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
}
