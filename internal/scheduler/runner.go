package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/probe"
	"github.com/hamed0406/topologycheck/internal/repo"
)

// Runner invokes the probe on a fixed interval and records every verdict.
type Runner struct {
	Logger   *zap.Logger
	Probe    string
	Checker  probe.Checker
	Verdicts repo.VerdictStore
	Interval time.Duration
	Timeout  time.Duration
}

func NewRunner(
	logger *zap.Logger,
	probeName string,
	checker probe.Checker,
	verdicts repo.VerdictStore,
	interval time.Duration,
	timeout time.Duration,
) *Runner {
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Runner{
		Logger:   logger,
		Probe:    probeName,
		Checker:  checker,
		Verdicts: verdicts,
		Interval: interval,
		Timeout:  timeout,
	}
}

// Run does an immediate pass, then one per tick. Stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded check and stores the verdict. Storage
// failures are logged; the verdict is returned either way.
func (r *Runner) RunOnce(ctx context.Context) domain.VerdictRecord {
	cctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	rec := domain.VerdictRecord{Probe: r.Probe, Verdict: r.Checker.Check(cctx)}
	elapsed := time.Since(start)

	if err := r.Verdicts.Append(ctx, &rec); err != nil {
		r.Logger.Warn("runner_append_error", zap.String("probe", r.Probe), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("probe", r.Probe),
		zap.Bool("healthy", rec.Healthy),
		zap.Int64("lag_ms", rec.LagMS),
		zap.Duration("took", elapsed),
	}
	if rec.Healthy {
		r.Logger.Info("check_completed", fields...)
	} else {
		r.Logger.Warn("check_completed", append(fields, zap.String("message", rec.Message))...)
	}
	return rec
}
