package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last health state seen for a probe and the last time
// a notification went out for it (used for cooldown).
type AlertRecord struct {
	Probe      string
	LastState  bool
	LastSentAt *time.Time
}

type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, probe string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt is stored as NULL.
	Set(ctx context.Context, probe string, lastState bool, sentAt time.Time) error
}
