package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestPostgresStore_Append_Latest_Recent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// Unique probe name per run so earlier runs don't leak into assertions.
	probe := fmt.Sprintf("probe-%d", time.Now().UTC().UnixNano())
	base := time.Now().UTC().Truncate(time.Millisecond)

	failed := &domain.VerdictRecord{
		Probe: probe,
		Verdict: domain.Verdict{
			Healthy:   false,
			Message:   "An exception was caught when fetch application current process time: boom",
			CheckedAt: base,
		},
	}
	if err := store.Append(ctx, failed); err != nil {
		t.Fatalf("Append failed verdict: %v", err)
	}
	if failed.ID == 0 {
		t.Fatalf("expected ID to be set")
	}

	ok := &domain.VerdictRecord{
		Probe: probe,
		Verdict: domain.Verdict{
			Healthy:     true,
			ProcessTime: base.Add(-time.Second).UnixMilli(),
			LagMS:       1000,
			CheckedAt:   base.Add(time.Second),
		},
	}
	if err := store.Append(ctx, ok); err != nil {
		t.Fatalf("Append healthy verdict: %v", err)
	}

	latest, err := store.Latest(ctx, probe)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != ok.ID || !latest.Healthy || latest.LagMS != 1000 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	recent, err := store.Recent(ctx, probe, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[1].ID != failed.ID || recent[1].ProcessTime != 0 {
		t.Fatalf("unexpected recent: %+v", recent)
	}
}

func TestPostgresStore_Alerts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	probe := fmt.Sprintf("alerts-%d", time.Now().UTC().UnixNano())

	rec, err := store.Get(ctx, probe)
	if err != nil || rec != nil {
		t.Fatalf("expected nil, got %+v err=%v", rec, err)
	}

	if err := store.Set(ctx, probe, false, time.Time{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec, err = store.Get(ctx, probe)
	if err != nil || rec == nil || rec.LastSentAt != nil || rec.LastState {
		t.Fatalf("unexpected: %+v err=%v", rec, err)
	}

	if err := store.Set(ctx, probe, true, time.Now()); err != nil {
		t.Fatalf("set2: %v", err)
	}
	rec, err = store.Get(ctx, probe)
	if err != nil || rec == nil || rec.LastSentAt == nil || !rec.LastState {
		t.Fatalf("unexpected2: %+v err=%v", rec, err)
	}
}
