package telemetry

import (
	"time"

	"go.uber.org/zap"

	"ekamcp/internal/domain"
)

const (
	FieldTool       = "tool"
	FieldSession    = "session"
	FieldOutcome    = "outcome"
	FieldEndpoint   = "endpoint"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func SessionField(session string) zap.Field {
	return zap.String(FieldSession, session)
}

func OutcomeField(outcome domain.ToolOutcome) zap.Field {
	return zap.String(FieldOutcome, string(outcome))
}

func EndpointField(endpoint string) zap.Field {
	return zap.String(FieldEndpoint, endpoint)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
