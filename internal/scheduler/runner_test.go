package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/repo/memory"
)

// --- fakes ---

type countingChecker struct {
	n       atomic.Int32
	healthy bool
	sawDL   atomic.Bool
}

func (c *countingChecker) Check(ctx context.Context) domain.Verdict {
	c.n.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.sawDL.Store(true)
	}
	v := domain.Verdict{Healthy: c.healthy, CheckedAt: time.Now().UTC()}
	if !c.healthy {
		v.Message = "Application is not RUNNING, status is STOPPED. "
	}
	return v
}

// --- tests ---

func TestRunner_RunOnceStoresVerdict(t *testing.T) {
	store := memory.New()
	chk := &countingChecker{healthy: true}
	r := NewRunner(zap.NewNop(), "P", chk, store, time.Minute, 200*time.Millisecond)

	rec := r.RunOnce(context.Background())
	if !rec.Healthy || rec.Probe != "P" || rec.ID == 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !chk.sawDL.Load() {
		t.Fatalf("check should run with a deadline")
	}
	latest, err := store.Latest(context.Background(), "P")
	if err != nil || latest.ID != rec.ID {
		t.Fatalf("verdict not stored: %+v err=%v", latest, err)
	}
}

func TestRunner_LoopRunsImmediatelyAndStops(t *testing.T) {
	store := memory.New()
	chk := &countingChecker{healthy: false}
	r := NewRunner(zap.NewNop(), "P", chk, store, 2*time.Millisecond, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for chk.n.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if chk.n.Load() < 2 {
		t.Fatalf("expected immediate pass plus ticks, got %d", chk.n.Load())
	}
	recent, _ := store.Recent(context.Background(), "P", 10)
	if len(recent) == 0 || recent[0].Healthy {
		t.Fatalf("unexpected stored verdicts: %+v", recent)
	}
}

func TestRunner_ZeroIntervalDisabled(t *testing.T) {
	chk := &countingChecker{healthy: true}
	r := NewRunner(zap.NewNop(), "P", chk, memory.New(), 0, 0)
	r.Run(context.Background()) // returns immediately
	if chk.n.Load() != 0 {
		t.Fatalf("disabled runner must not check")
	}
	if r.Timeout != time.Minute {
		t.Fatalf("default timeout not applied: %v", r.Timeout)
	}
}
