package domain

import (
	"errors"
	"time"
)

// ToolOutcome labels how a tool invocation ended.
type ToolOutcome string

const (
	// ToolOutcomeSuccess indicates the handler produced a normal result.
	ToolOutcomeSuccess ToolOutcome = "success"
	// ToolOutcomeInvalidArguments indicates a schema or semantic argument failure.
	ToolOutcomeInvalidArguments ToolOutcome = "invalid_arguments"
	// ToolOutcomeUnconfirmedStep indicates a protocol tool was called out of order.
	ToolOutcomeUnconfirmedStep ToolOutcome = "unconfirmed_step"
	// ToolOutcomeUnauthorized indicates the upstream rejected our credentials.
	ToolOutcomeUnauthorized ToolOutcome = "unauthorized"
	// ToolOutcomeUnavailable indicates a transport failure or upstream 5xx.
	ToolOutcomeUnavailable ToolOutcome = "unavailable"
	// ToolOutcomeNotFound indicates a drug/tag/publisher absent from the corpus.
	ToolOutcomeNotFound ToolOutcome = "not_found"
	// ToolOutcomeInternal indicates an unclassified handler failure.
	ToolOutcomeInternal ToolOutcome = "internal"
)

// ToolOutcomeFromError maps a classified error to its metric label.
func ToolOutcomeFromError(err error) ToolOutcome {
	if err == nil {
		return ToolOutcomeSuccess
	}
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return ToolOutcomeInternal
	}
	switch domainErr.Code {
	case CodeInvalidArguments:
		return ToolOutcomeInvalidArguments
	case CodeUnconfirmedWorkflowStep:
		return ToolOutcomeUnconfirmedStep
	case CodeUpstreamUnauthorized:
		return ToolOutcomeUnauthorized
	case CodeUpstreamUnavailable:
		return ToolOutcomeUnavailable
	case CodeNotFound:
		return ToolOutcomeNotFound
	default:
		return ToolOutcomeInternal
	}
}

// UpstreamOutcome labels how an outbound API request ended.
type UpstreamOutcome string

const (
	// UpstreamOutcomeSuccess indicates a 2xx response.
	UpstreamOutcomeSuccess UpstreamOutcome = "success"
	// UpstreamOutcomeClientError indicates a 4xx other than auth failures.
	UpstreamOutcomeClientError UpstreamOutcome = "client_error"
	// UpstreamOutcomeUnauthorized indicates a 401/403 response.
	UpstreamOutcomeUnauthorized UpstreamOutcome = "unauthorized"
	// UpstreamOutcomeServerError indicates a 5xx response.
	UpstreamOutcomeServerError UpstreamOutcome = "server_error"
	// UpstreamOutcomeTransport indicates the request never got a response.
	UpstreamOutcomeTransport UpstreamOutcome = "transport"
)

// TokenRefreshOutcome labels a token acquisition or refresh attempt.
type TokenRefreshOutcome string

const (
	// TokenRefreshOutcomeSuccess indicates a usable token was obtained.
	TokenRefreshOutcomeSuccess TokenRefreshOutcome = "success"
	// TokenRefreshOutcomeFailure indicates the attempt failed.
	TokenRefreshOutcomeFailure TokenRefreshOutcome = "failure"
)

// ToolCallMetric captures one tool invocation.
type ToolCallMetric struct {
	Tool     string
	Outcome  ToolOutcome
	Duration time.Duration
}

// UpstreamMetric captures one outbound API request.
type UpstreamMetric struct {
	Endpoint string
	Method   string
	Outcome  UpstreamOutcome
	Duration time.Duration
}

// Metrics records operational metrics for tool calls, upstream requests
// and the protocol workflow.
type Metrics interface {
	ObserveToolCall(metric ToolCallMetric)
	ObserveUpstreamRequest(metric UpstreamMetric)
	ObserveWorkflowTransition(from, to WorkflowState)
	SetActiveSessions(count int)
	ObserveTokenRefresh(outcome TokenRefreshOutcome, duration time.Duration)
}
