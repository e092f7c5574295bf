package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ekamcp/internal/domain"
)

type PrometheusMetrics struct {
	toolCallDuration     *prometheus.HistogramVec
	upstreamDuration     *prometheus.HistogramVec
	workflowTransitions  *prometheus.CounterVec
	activeSessions       prometheus.Gauge
	tokenRefreshes       *prometheus.CounterVec
	tokenRefreshDuration prometheus.Histogram
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ekamcp_tool_call_duration_seconds",
				Help:    "Duration of MCP tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool", "outcome"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ekamcp_upstream_request_duration_seconds",
				Help:    "Duration of Eka API requests in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint", "method", "outcome"},
		),
		workflowTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ekamcp_workflow_transitions_total",
				Help: "Total number of protocol workflow state transitions",
			},
			[]string{"from", "to"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ekamcp_active_workflow_sessions",
				Help: "Current number of tracked workflow sessions",
			},
		),
		tokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ekamcp_token_refreshes_total",
				Help: "Total number of access token acquisitions and refreshes",
			},
			[]string{"outcome"},
		),
		tokenRefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ekamcp_token_refresh_duration_seconds",
				Help:    "Duration of token acquisitions and refreshes in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveToolCall(metric domain.ToolCallMetric) {
	p.toolCallDuration.WithLabelValues(metric.Tool, string(metric.Outcome)).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveUpstreamRequest(metric domain.UpstreamMetric) {
	p.upstreamDuration.WithLabelValues(metric.Endpoint, metric.Method, string(metric.Outcome)).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveWorkflowTransition(from, to domain.WorkflowState) {
	p.workflowTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (p *PrometheusMetrics) SetActiveSessions(count int) {
	p.activeSessions.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveTokenRefresh(outcome domain.TokenRefreshOutcome, duration time.Duration) {
	p.tokenRefreshes.WithLabelValues(string(outcome)).Inc()
	p.tokenRefreshDuration.Observe(duration.Seconds())
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
