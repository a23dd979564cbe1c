package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/topologycheck/internal/config"
	"github.com/hamed0406/topologycheck/internal/eagle"
	"github.com/hamed0406/topologycheck/internal/httpapi"
	apimw "github.com/hamed0406/topologycheck/internal/httpapi/middleware"
	"github.com/hamed0406/topologycheck/internal/logging"
	"github.com/hamed0406/topologycheck/internal/notify"
	"github.com/hamed0406/topologycheck/internal/probe"
	"github.com/hamed0406/topologycheck/internal/repo"
	"github.com/hamed0406/topologycheck/internal/repo/memory"
	"github.com/hamed0406/topologycheck/internal/repo/postgres"
	"github.com/hamed0406/topologycheck/internal/scheduler"
)

const probeName = "topology"

type stores struct {
	verdicts repo.VerdictStore
	alerts   repo.AlertStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		m := memory.New()
		return stores{verdicts: m, alerts: m, close: func() {}}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return stores{}, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return stores{}, err
	}
	logger.Info("store_postgres")
	return stores{verdicts: pg, alerts: pg, close: pg.Close}, nil
}

func main() {
	configPath := flag.String("config", os.Getenv("TOPOLOGYCHECK_CONFIG"), "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer st.close()

	checker := probe.WithRetries(
		probe.NewFreshnessChecker(cfg.Probe, eagle.Dial, logger.Named("probe")),
		cfg.CheckAttempts, cfg.CheckBackoff,
	)
	runner := scheduler.NewRunner(logger.Named("runner"), probeName, checker, st.verdicts, cfg.CheckInterval, cfg.CheckTimeout)

	notifiers := notify.Multi{notify.Log{Logger: logger.Named("alert")}}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	alerter := scheduler.NewAlerter(logger.Named("alerter"), st.verdicts, st.alerts, notifiers, scheduler.AlerterConfig{
		Probe:           probeName,
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
		PollInterval:    cfg.CheckInterval,
	})

	api := httpapi.NewServer(logger, probeName, st.verdicts, runner)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := alerter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("api_shutdown")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api_exit", zap.Error(err))
		os.Exit(1)
	}
}
