// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/hamed0406/topologycheck/internal/config"
)

func main() {
	path := flag.String("config", os.Getenv("TOPOLOGYCHECK_CONFIG"), "path to a config file")
	flag.Parse()
	os.Exit(preflight(*path, os.Stdout, os.Stderr))
}

func preflight(path string, stdout, stderr io.Writer) int {
	fail := func(msg string) { fmt.Fprintln(stderr, "✖", msg) }
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	cfg, err := config.Load(path)
	if err != nil {
		fail(err.Error())
		return 1
	}
	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		return 1
	}

	p := cfg.Probe
	ok(fmt.Sprintf("eagle=%s site=%s appId=%s", p.BaseURL(), p.Site, p.AppID))
	ok(fmt.Sprintf("services=%v", p.Services))
	if !p.MaxDelaySet {
		warn(fmt.Sprintf("%s not set; using %s", config.KeyMaxDelayTime, config.DefaultMaxDelay))
	} else {
		ok(fmt.Sprintf("max delay %s", p.MaxDelay))
	}
	if p.Username == "" {
		warn("service.username empty; requests are sent without basic auth.")
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("api.adminKeys is empty; POST /api/check is open.")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured; read routes are open.")
	}

	if cfg.DatabaseURL == "" {
		warn("database.url empty; verdict history is in-memory.")
	} else {
		ok("database.url present")
	}
	if cfg.CheckInterval == 0 {
		warn("check.intervalSeconds is 0; scheduled checks are disabled.")
	} else {
		ok(fmt.Sprintf("checking every %s (timeout %s)", cfg.CheckInterval, cfg.CheckTimeout))
	}
	if cfg.SlackWebhook == "" {
		warn("slack.webhook empty; alerts go to the log only.")
	}

	ok("preflight passed")
	return 0
}
