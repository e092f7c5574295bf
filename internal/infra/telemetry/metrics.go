package telemetry

import (
	"time"

	"ekamcp/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveToolCall(_ domain.ToolCallMetric) {}

func (n *NoopMetrics) ObserveUpstreamRequest(_ domain.UpstreamMetric) {}

func (n *NoopMetrics) ObserveWorkflowTransition(_, _ domain.WorkflowState) {}

func (n *NoopMetrics) SetActiveSessions(_ int) {}

func (n *NoopMetrics) ObserveTokenRefresh(_ domain.TokenRefreshOutcome, _ time.Duration) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
