package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/topologycheck/internal/domain"
)

var ErrNotFound = errors.New("repo: not found")

// VerdictStore keeps the history of health verdicts per probe.
type VerdictStore interface {
	// Append stores r and sets r.ID.
	Append(ctx context.Context, r *domain.VerdictRecord) error
	// Latest returns ErrNotFound when the probe has no verdicts yet.
	Latest(ctx context.Context, probe string) (*domain.VerdictRecord, error)
	// Recent returns up to limit verdicts, newest first.
	Recent(ctx context.Context, probe string, limit int) ([]domain.VerdictRecord, error)
}
