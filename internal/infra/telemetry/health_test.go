package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekamcp/internal/domain"
)

func TestHealthTracker_StartsHealthy(t *testing.T) {
	tracker := NewHealthTracker()

	report := tracker.Report()
	assert.Equal(t, "ok", report.Status)
	assert.Zero(t, report.Upstream.ConsecutiveFailures)
}

func TestHealthTracker_DegradesAfterRepeatedFailures(t *testing.T) {
	tracker := NewHealthTracker()

	tracker.RecordUpstreamFailure(errors.New("connection refused"))
	tracker.RecordUpstreamFailure(errors.New("connection refused"))
	assert.Equal(t, "ok", tracker.Report().Status)

	tracker.RecordUpstreamFailure(errors.New("connection refused"))
	report := tracker.Report()
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 3, report.Upstream.ConsecutiveFailures)
	assert.Equal(t, "connection refused", report.Upstream.LastError)
	assert.False(t, report.Upstream.LastErrorAt.IsZero())
}

func TestHealthTracker_RecoversOnSuccess(t *testing.T) {
	tracker := NewHealthTracker()

	for i := 0; i < 5; i++ {
		tracker.RecordUpstreamFailure(errors.New("timeout"))
	}
	require.Equal(t, "degraded", tracker.Report().Status)

	tracker.RecordUpstreamSuccess()
	report := tracker.Report()
	assert.Equal(t, "ok", report.Status)
	assert.Zero(t, report.Upstream.ConsecutiveFailures)
	assert.False(t, report.Upstream.LastSuccessAt.IsZero())
	// The last error stays visible for debugging after recovery
	assert.Equal(t, "timeout", report.Upstream.LastError)
}

func TestHealthTracker_ReportsProviders(t *testing.T) {
	tracker := NewHealthTracker()
	expiry := time.Now().Add(30 * time.Minute)
	tracker.SetTokenStatusFunc(func() domain.TokenStatus {
		return domain.TokenStatus{HasToken: true, ExpiresAt: expiry}
	})
	tracker.SetSessionCountFunc(func() int { return 4 })

	report := tracker.Report()
	assert.True(t, report.Token.HasToken)
	assert.Equal(t, expiry, report.Token.ExpiresAt)
	assert.Equal(t, 4, report.Sessions)
}
