package probe

import (
	"context"

	"github.com/hamed0406/topologycheck/internal/config"
	"github.com/hamed0406/topologycheck/internal/domain"
)

// Checker produces a verdict. Implementations absorb every failure into the
// verdict and never return an error.
type Checker interface {
	Check(ctx context.Context) domain.Verdict
}

// Client is the remote service the freshness check reads from.
type Client interface {
	RunStatus(ctx context.Context) (domain.RunStatus, error)
	// MaxTimestamp returns the newest lastUpdateTime for service at site,
	// or found=false when there are no records.
	MaxTimestamp(ctx context.Context, service, site string) (ts int64, found bool, err error)
	// Close must be safe to call more than once.
	Close() error
}

// Dialer acquires a Client scoped to a single check.
type Dialer func(cfg config.ProbeConfig) (Client, error)
