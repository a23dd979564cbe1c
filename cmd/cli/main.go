package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/config"
	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/eagle"
	"github.com/hamed0406/topologycheck/internal/probe"
)

const (
	exitHealthy     = 0
	exitUnhealthy   = 1
	exitConfigError = 2
)

var (
	errUnhealthy = errors.New("unhealthy")
	errConfig    = errors.New("config")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(eagle.Dial)
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitHealthy
	case errors.Is(err, errUnhealthy):
		return exitUnhealthy
	default:
		return exitConfigError
	}
}

func newRootCmd(dial probe.Dialer) *cobra.Command {
	root := &cobra.Command{
		Use:           "topologycheck-cli",
		Short:         "Topology freshness health check",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(dial))
	return root
}

func newCheckCmd(dial probe.Dialer) *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one health check and print the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "✖", err)
				return fmt.Errorf("%w: %w", errConfig, err)
			}

			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return fmt.Errorf("%w: %w", errConfig, err)
				}
				defer logger.Sync()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CheckTimeout)
			defer cancel()

			v := probe.NewFreshnessChecker(cfg.Probe, dial, logger).Check(ctx)
			printVerdict(cmd.OutOrStdout(), v)
			if !v.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("TOPOLOGYCHECK_CONFIG"), "path to a config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log probe internals to stderr")
	return cmd
}

func printVerdict(w io.Writer, v domain.Verdict) {
	if v.Healthy {
		fmt.Fprintf(w, "✔ healthy (lag %s)\n", probe.FormatDelay(v.LagMS))
		return
	}
	fmt.Fprintln(w, "✖ unhealthy:", v.Message)
}
