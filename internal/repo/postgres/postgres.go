package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/repo"
)

var _ repo.VerdictStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Schema is applied by EnsureSchema; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS verdicts (
  id              BIGSERIAL PRIMARY KEY,
  probe           TEXT NOT NULL,
  healthy         BOOLEAN NOT NULL,
  message         TEXT NOT NULL DEFAULT '',
  process_time_ms BIGINT NULL,
  lag_ms          BIGINT NULL,
  checked_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_probe_time ON verdicts (probe, checked_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS alerts (
  probe        TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- VerdictStore ----

func (s *Store) Append(ctx context.Context, r *domain.VerdictRecord) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	// process time and lag are unknown when the check failed before measuring
	var processPtr, lagPtr *int64
	if r.ProcessTime != 0 || r.LagMS != 0 {
		processPtr, lagPtr = &r.ProcessTime, &r.LagMS
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO verdicts (probe, healthy, message, process_time_ms, lag_ms, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.Probe, r.Healthy, r.Message, processPtr, lagPtr, r.CheckedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

const selectVerdicts = `
SELECT id, probe, healthy, message, process_time_ms, lag_ms, checked_at
  FROM verdicts
 WHERE probe = $1
 ORDER BY checked_at DESC, id DESC
 LIMIT $2`

func (s *Store) Latest(ctx context.Context, probe string) (*domain.VerdictRecord, error) {
	rows, err := s.Recent(ctx, probe, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repo.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) Recent(ctx context.Context, probe string, limit int) ([]domain.VerdictRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, selectVerdicts, probe, limit)
	if err != nil {
		return nil, fmt.Errorf("recent verdicts: %w", err)
	}
	defer rows.Close()

	var out []domain.VerdictRecord
	for rows.Next() {
		var (
			r       domain.VerdictRecord
			process *int64
			lag     *int64
		)
		if err := rows.Scan(&r.ID, &r.Probe, &r.Healthy, &r.Message, &process, &lag, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if process != nil {
			r.ProcessTime = *process
		}
		if lag != nil {
			r.LagMS = *lag
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

func (s *Store) Get(ctx context.Context, probe string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE probe=$1`
	r := repo.AlertRecord{Probe: probe}
	err := s.pool.QueryRow(ctx, q, probe).Scan(&r.LastState, &r.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &r, nil
}

func (s *Store) Set(ctx context.Context, probe string, lastState bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (probe, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (probe)
		DO UPDATE SET last_state=EXCLUDED.last_state, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	if _, err := s.pool.Exec(ctx, q, probe, lastState, ts); err != nil {
		s.log.Warn("alert_state_write_failed", zap.String("probe", probe), zap.Error(err))
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
