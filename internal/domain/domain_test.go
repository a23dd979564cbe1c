package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRunStatus_IsRunning(t *testing.T) {
	for _, s := range []RunStatus{StatusInitialized, StatusStarting, StatusStopping, StatusStopped, StatusRemoved, StatusUnknown, ""} {
		if s.IsRunning() {
			t.Fatalf("%q must not count as running", s)
		}
	}
	if !StatusRunning.IsRunning() {
		t.Fatalf("RUNNING must count as running")
	}
}

func TestVerdictRecord_FlattensVerdict(t *testing.T) {
	rec := VerdictRecord{
		ID:    7,
		Probe: "TOPOLOGY_HEALTH_CHECK",
		Verdict: Verdict{
			Healthy:   true,
			CheckedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		},
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"healthy":true`) || strings.Contains(s, `"Verdict"`) {
		t.Fatalf("verdict fields should be inlined: %s", s)
	}
	if strings.Contains(s, `"message"`) {
		t.Fatalf("empty message should be omitted: %s", s)
	}
}
