package telemetry

import (
	"sync"
	"time"

	"ekamcp/internal/domain"
)

// degradedFailureThreshold is how many consecutive upstream failures flip
// /healthz from ok to degraded.
const degradedFailureThreshold = 3

// HealthReport is the JSON body served on /healthz.
type HealthReport struct {
	Status        string             `json:"status"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Upstream      UpstreamHealth     `json:"upstream"`
	Token         domain.TokenStatus `json:"token"`
	Sessions      int                `json:"sessions"`
}

// UpstreamHealth summarizes recent Eka API reachability.
type UpstreamHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorAt         time.Time `json:"last_error_at,omitzero"`
	LastSuccessAt       time.Time `json:"last_success_at,omitzero"`
}

// HealthTracker aggregates liveness signals for the /healthz endpoint. The
// upstream signals come from the API client; token and session state are
// pulled through provider funcs so the tracker never holds credentials.
type HealthTracker struct {
	mu                  sync.Mutex
	startedAt           time.Time
	consecutiveFailures int
	lastError           string
	lastErrorAt         time.Time
	lastSuccessAt       time.Time

	tokenStatus  func() domain.TokenStatus
	sessionCount func() int
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{startedAt: time.Now()}
}

// SetTokenStatusFunc installs the provider consulted on each report.
func (t *HealthTracker) SetTokenStatusFunc(fn func() domain.TokenStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokenStatus = fn
}

// SetSessionCountFunc installs the provider consulted on each report.
func (t *HealthTracker) SetSessionCountFunc(fn func() int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionCount = fn
}

func (t *HealthTracker) RecordUpstreamSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures = 0
	t.lastSuccessAt = time.Now()
}

func (t *HealthTracker) RecordUpstreamFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	if err != nil {
		t.lastError = err.Error()
	}
	t.lastErrorAt = time.Now()
}

// Report snapshots the current health. Status degrades after repeated
// upstream failures and recovers on the first success.
func (t *HealthTracker) Report() HealthReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := "ok"
	if t.consecutiveFailures >= degradedFailureThreshold {
		status = "degraded"
	}

	report := HealthReport{
		Status:        status,
		UptimeSeconds: int64(time.Since(t.startedAt).Seconds()),
		Upstream: UpstreamHealth{
			ConsecutiveFailures: t.consecutiveFailures,
			LastError:           t.lastError,
			LastErrorAt:         t.lastErrorAt,
			LastSuccessAt:       t.lastSuccessAt,
		},
	}
	if t.tokenStatus != nil {
		report.Token = t.tokenStatus()
	}
	if t.sessionCount != nil {
		report.Sessions = t.sessionCount()
	}
	return report
}
