package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/config"
	"github.com/hamed0406/topologycheck/internal/domain"
)

const exceptionPrefix = "An exception was caught when fetch application current process time: "

// FreshnessChecker reports the monitored application unhealthy when it is not
// RUNNING or when its slowest topology source lags wall-clock time by more
// than the configured max delay.
type FreshnessChecker struct {
	Config config.ProbeConfig
	Dial   Dialer
	Logger *zap.Logger
	Clock  func() time.Time
}

func NewFreshnessChecker(cfg config.ProbeConfig, dial Dialer, logger *zap.Logger) *FreshnessChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FreshnessChecker{
		Config: cfg,
		Dial:   dial,
		Logger: logger,
		Clock:  time.Now,
	}
}

var _ Checker = (*FreshnessChecker)(nil)

// Check runs one evaluation with a client scoped to this call.
func (f *FreshnessChecker) Check(ctx context.Context) (v domain.Verdict) {
	message := ""
	defer func() {
		if r := recover(); r != nil {
			v = f.unhealthy(message + exceptionPrefix + describePanic(r))
		}
	}()

	client, err := f.Dial(f.Config)
	if err != nil {
		return f.unhealthy(exceptionPrefix + err.Error())
	}
	defer f.release(client)

	sig := f.collect(ctx, client)
	switch {
	case sig.statusErr != nil:
		message += exceptionPrefix + sig.statusErr.Error() + ". "
	case !sig.status.IsRunning():
		message += fmt.Sprintf("Application is not RUNNING, status is %s. ", sig.status)
	}
	if sig.stampsErr != nil {
		return f.unhealthy(message + exceptionPrefix + sig.stampsErr.Error())
	}

	now := f.Clock()
	processTime := ProcessTime(sig.stamps)
	lag := lagMillis(now.UnixMilli(), processTime)
	maxDelay := f.Config.MaxDelayOrDefault().Milliseconds()

	v = domain.Verdict{
		Healthy:     true,
		ProcessTime: processTime,
		LagMS:       lag,
		CheckedAt:   now.UTC(),
	}
	if message != "" || lag > maxDelay {
		v.Healthy = false
		v.Message = message + fmt.Sprintf("Current process time is %dms, delay %s.", processTime, FormatDelay(lag))
	}

	f.Logger.Debug("freshness_evaluated",
		zap.Bool("healthy", v.Healthy),
		zap.String("status", string(sig.status)),
		zap.Int64("process_time_ms", processTime),
		zap.Int64("lag_ms", lag),
		zap.Int64("max_delay_ms", maxDelay),
	)
	return v
}

type signals struct {
	status    domain.RunStatus
	statusErr error
	stamps    []domain.ServiceTimestamp
	stampsErr error
}

// collect runs the status query alongside the timestamp fan-out. The status
// query uses the caller's context so a failed timestamp query does not cancel
// it and blur the status diagnosis.
func (f *FreshnessChecker) collect(ctx context.Context, client Client) signals {
	var sig signals
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig.statusErr = safely(func() error {
			qctx, cancel := withReadTimeout(ctx, f.Config.ReadTimeout)
			defer cancel()
			var err error
			sig.status, err = client.RunStatus(qctx)
			return err
		})
	}()

	stamps, err := ServiceTimestamps(ctx, client, f.Config.Site, f.Config.Services, f.Config.ReadTimeout)
	<-done
	sig.stamps, sig.stampsErr = stamps, err
	return sig
}

func (f *FreshnessChecker) release(client Client) {
	defer func() {
		if r := recover(); r != nil {
			f.Logger.Warn("client_close_panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := client.Close(); err != nil {
		f.Logger.Warn("client_close_failed", zap.Error(err))
	}
}

func (f *FreshnessChecker) unhealthy(message string) domain.Verdict {
	f.Logger.Debug("freshness_check_failed", zap.String("message", message))
	return domain.Verdict{
		Healthy:   false,
		Message:   message,
		CheckedAt: f.Clock().UTC(),
	}
}
