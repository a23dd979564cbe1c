package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/notify"
	"github.com/hamed0406/topologycheck/internal/probe"
	"github.com/hamed0406/topologycheck/internal/repo"
)

type AlerterConfig struct {
	Probe           string
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest verdict and notifies on health transitions.
type Alerter struct {
	logger   *zap.Logger
	verdicts repo.VerdictStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(
	logger *zap.Logger,
	verdicts repo.VerdictStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	return &Alerter{
		logger:   logger,
		verdicts: verdicts,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	if a.cfg.PollInterval <= 0 {
		a.logger.Info("alerter_disabled")
		return nil
	}
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	a.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.scan(ctx)
		}
	}
}

func (a *Alerter) scan(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.logger.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	v, err := a.verdicts.Latest(ctx, a.cfg.Probe)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest verdict: %w", err)
	}

	rec, err := a.alertDB.Get(ctx, a.cfg.Probe)
	if err != nil {
		return fmt.Errorf("alert state: %w", err)
	}

	now := a.now()
	stateChanged := rec == nil || rec.LastState != v.Healthy

	// Cooldown only matters for unhealthy alerts.
	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	downAlert := stateChanged && !v.Healthy && cooled
	// a first-ever healthy verdict is not a recovery
	recoveryAlert := stateChanged && v.Healthy && rec != nil && a.cfg.AlertOnRecovery

	if downAlert || recoveryAlert {
		title := "🔴 Topology check UNHEALTHY"
		if v.Healthy {
			title = "🟢 Topology check RECOVERED"
		}

		lagTxt := "n/a"
		if v.ProcessTime != 0 {
			lagTxt = probe.FormatDelay(v.LagMS)
		}
		msg := v.Message
		if msg == "" {
			msg = "-"
		}
		text := fmt.Sprintf(
			"Probe: %s\nLag: %s\nMessage: %s\nChecked: %s",
			a.cfg.Probe, lagTxt, msg, v.CheckedAt.Format(time.RFC3339),
		)

		if err := a.notifier.Send(ctx, title, text); err != nil {
			a.logger.Warn("alert_send_error", zap.String("probe", a.cfg.Probe), zap.Error(err))
		}
		return a.alertDB.Set(ctx, a.cfg.Probe, v.Healthy, now)
	}

	// State changed without a send (cooldown, recovery disabled, first
	// healthy verdict): record the state but keep the last send time.
	if stateChanged {
		var sent time.Time
		if rec != nil && rec.LastSentAt != nil {
			sent = *rec.LastSentAt
		}
		return a.alertDB.Set(ctx, a.cfg.Probe, v.Healthy, sent)
	}
	return nil
}
