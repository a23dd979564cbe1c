package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/topologycheck/internal/domain"
	apimw "github.com/hamed0406/topologycheck/internal/httpapi/middleware"
	"github.com/hamed0406/topologycheck/internal/repo/memory"
)

const testProbe = "topology"

// fakeRunner stores a canned verdict, like scheduler.Runner does.
type fakeRunner struct {
	store *memory.Store
	out   domain.Verdict
	calls atomic.Int32
}

func (f *fakeRunner) RunOnce(ctx context.Context) domain.VerdictRecord {
	f.calls.Add(1)
	rec := domain.VerdictRecord{Probe: testProbe, Verdict: f.out}
	_ = f.store.Append(ctx, &rec)
	return rec
}

func setupServer(t *testing.T, out domain.Verdict) (*httptest.Server, *memory.Store, *fakeRunner) {
	t.Helper()
	store := memory.New()
	runner := &fakeRunner{store: store, out: out}
	srv := NewServer(zap.NewNop(), testProbe, store, runner)

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	ts := httptest.NewServer(srv.Router(keys))
	t.Cleanup(ts.Close)
	return ts, store, runner
}

func do(t *testing.T, method, url, key string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, bytes.NewReader(nil))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _, _ := setupServer(t, domain.Verdict{Healthy: true})
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: want 200 got %d", resp.StatusCode)
	}
}

func TestHealth_NoVerdictYet(t *testing.T) {
	ts, _, _ := setupServer(t, domain.Verdict{Healthy: true})
	resp := do(t, http.MethodGet, ts.URL+"/api/health", "pub_test")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 got %d", resp.StatusCode)
	}
}

func TestHealth_StatusMirrorsVerdict(t *testing.T) {
	ts, store, _ := setupServer(t, domain.Verdict{Healthy: true})
	ctx := context.Background()

	healthy := domain.VerdictRecord{Probe: testProbe, Verdict: domain.Verdict{Healthy: true, CheckedAt: time.Now()}}
	if err := store.Append(ctx, &healthy); err != nil {
		t.Fatal(err)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/api/health", "pub_test"); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthy: want 200 got %d", resp.StatusCode)
	}

	msg := "Application is not RUNNING, status is STOPPED. "
	bad := domain.VerdictRecord{Probe: testProbe, Verdict: domain.Verdict{Healthy: false, Message: msg}}
	if err := store.Append(ctx, &bad); err != nil {
		t.Fatal(err)
	}
	resp := do(t, http.MethodGet, ts.URL+"/api/health", "adm_test")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: want 503 got %d", resp.StatusCode)
	}
	var got domain.VerdictRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Healthy || got.Message != msg {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHealth_RequiresKey(t *testing.T) {
	ts, _, _ := setupServer(t, domain.Verdict{Healthy: true})
	if resp := do(t, http.MethodGet, ts.URL+"/api/health", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: want 401 got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/api/health", "nope"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key: want 401 got %d", resp.StatusCode)
	}
}

func TestVerdicts_NewestFirstAndLimit(t *testing.T) {
	ts, store, _ := setupServer(t, domain.Verdict{Healthy: true})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := domain.VerdictRecord{Probe: testProbe, Verdict: domain.Verdict{Healthy: i%2 == 0, LagMS: int64(i)}}
		if err := store.Append(ctx, &rec); err != nil {
			t.Fatal(err)
		}
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/verdicts?limit=2", "pub_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 got %d", resp.StatusCode)
	}
	var got []domain.VerdictRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 verdicts got %d", len(got))
	}
	if got[0].LagMS != 2 || got[1].LagMS != 1 {
		t.Fatalf("not newest first: %+v", got)
	}

	if resp := do(t, http.MethodGet, ts.URL+"/api/verdicts?limit=abc", "pub_test"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: want 400 got %d", resp.StatusCode)
	}
}

func TestVerdicts_EmptyIsArray(t *testing.T) {
	ts, _, _ := setupServer(t, domain.Verdict{Healthy: true})
	resp := do(t, http.MethodGet, ts.URL+"/api/verdicts", "pub_test")
	var got []domain.VerdictRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty array, got %#v", got)
	}
}

func TestCheck_AdminOnly(t *testing.T) {
	out := domain.Verdict{Healthy: false, Message: "Current process time is 1ms, delay 0 hours, 20 minutes, 0 seconds."}
	ts, store, runner := setupServer(t, out)

	if resp := do(t, http.MethodPost, ts.URL+"/api/check", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: want 401 got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/check", "pub_test"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key: want 403 got %d", resp.StatusCode)
	}
	if runner.calls.Load() != 0 {
		t.Fatalf("runner must not run without admin key")
	}

	resp := do(t, http.MethodPost, ts.URL+"/api/check", "adm_test")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503 got %d", resp.StatusCode)
	}
	var got domain.VerdictRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Message != out.Message || got.ID == 0 {
		t.Fatalf("unexpected verdict: %+v", got)
	}

	latest, err := store.Latest(context.Background(), testProbe)
	if err != nil || latest.ID != got.ID {
		t.Fatalf("manual check not stored: %+v %v", latest, err)
	}
}
