package domain

import "time"

// RunStatus is the lifecycle state the monitored application reports.
type RunStatus string

const (
	StatusInitialized RunStatus = "INITIALIZED"
	StatusStarting    RunStatus = "STARTING"
	StatusRunning     RunStatus = "RUNNING"
	StatusStopping    RunStatus = "STOPPING"
	StatusStopped     RunStatus = "STOPPED"
	StatusRemoved     RunStatus = "REMOVED"
	StatusUnknown     RunStatus = "UNKNOWN"
)

func (s RunStatus) IsRunning() bool { return s == StatusRunning }

// ServiceTimestamp is the newest lastUpdateTime recorded for one topology
// service. Found is false when the service has no records at the site.
type ServiceTimestamp struct {
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp_ms"`
	Found     bool   `json:"found"`
}

// Verdict is the outcome of one health check.
type Verdict struct {
	Healthy     bool      `json:"healthy"`
	Message     string    `json:"message,omitempty"`
	ProcessTime int64     `json:"process_time_ms,omitempty"` // slowest source; 0 when unknown
	LagMS       int64     `json:"lag_ms,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// VerdictRecord is a stored verdict.
type VerdictRecord struct {
	ID    int64  `json:"id"`
	Probe string `json:"probe"`
	Verdict
}
