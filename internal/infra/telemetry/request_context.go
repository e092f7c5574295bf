package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type callMetaKey struct{}

// CallMeta identifies one tool invocation across logs, error payloads and
// traces. CallID is minted per invocation; trace and span IDs are picked
// up from any OpenTelemetry span already on the context.
type CallMeta struct {
	CallID  string
	TraceID string
	SpanID  string
}

// IsZero reports whether the meta carries no identifiers at all.
func (m CallMeta) IsZero() bool {
	return m.CallID == "" && m.TraceID == "" && m.SpanID == ""
}

// Fields renders the meta as zap fields, omitting empty identifiers.
func (m CallMeta) Fields() []zap.Field {
	if m.IsZero() {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if m.CallID != "" {
		fields = append(fields, RequestIDField(m.CallID))
	}
	if m.TraceID != "" {
		fields = append(fields, TraceIDField(m.TraceID))
	}
	if m.SpanID != "" {
		fields = append(fields, SpanIDField(m.SpanID))
	}
	return fields
}

// CallMetaFrom reads the invocation metadata off the context.
func CallMetaFrom(ctx context.Context) (CallMeta, bool) {
	if ctx == nil {
		return CallMeta{}, false
	}
	meta, ok := ctx.Value(callMetaKey{}).(CallMeta)
	return meta, ok && !meta.IsZero()
}

// CallIDFrom returns the invocation's call ID, if the context carries one.
func CallIDFrom(ctx context.Context) (string, bool) {
	meta, ok := CallMetaFrom(ctx)
	if !ok || meta.CallID == "" {
		return "", false
	}
	return meta.CallID, true
}

// TagCall returns a context guaranteed to carry call metadata, minting a
// UUID call ID when neither the caller nor the context has one. Calling it
// again on an already-tagged context is a no-op that returns the existing
// meta, so nested instrumentation stays on one ID.
func TagCall(ctx context.Context, callID string) (context.Context, CallMeta) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, ok := CallMetaFrom(ctx); ok {
		if callID == "" || callID == existing.CallID {
			return ctx, existing
		}
	}
	if callID == "" {
		callID = uuid.NewString()
	}

	meta := CallMeta{CallID: callID}
	if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()
	}
	return context.WithValue(ctx, callMetaKey{}, meta), meta
}

// CallLogger returns base annotated with the context's call metadata.
func CallLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := CallMetaFrom(ctx)
	if !ok {
		return logger
	}
	return logger.With(meta.Fields()...)
}
