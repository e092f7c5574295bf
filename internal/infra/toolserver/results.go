package toolserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

// errorPayload is the structured error surface returned to the model.
// Meta carries the valid options for the required step so the model can
// self-correct without a probe call.
type errorPayload struct {
	Code      domain.ErrorCode  `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// successResult wraps a payload as indented JSON text content, followed by
// any extra content items (protocol page images).
func successResult(payload any, extra ...mcp.Content) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, domain.E(domain.CodeInternal, "encode tool result", "", err)
	}
	content := make([]mcp.Content, 0, 1+len(extra))
	content = append(content, &mcp.TextContent{Text: string(data)})
	content = append(content, extra...)
	return &mcp.CallToolResult{Content: content}, nil
}

// errorResult converts a classified failure into an IsError tool result.
// Handler failures never become protocol errors: the model sees the code,
// message and meta and decides what to do next.
func errorResult(ctx context.Context, err error) *mcp.CallToolResult {
	requestID, _ := telemetry.CallIDFrom(ctx)
	payload := errorPayload{
		Code:      domain.CodeInternal,
		Message:   err.Error(),
		RequestID: requestID,
	}
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		payload.Code = domainErr.Code
		payload.Meta = domainErr.Meta
		if domainErr.Message != "" {
			payload.Message = domainErr.Message
		}
	}

	data, marshalErr := json.MarshalIndent(struct {
		Error errorPayload `json:"error"`
	}{Error: payload}, "", "  ")
	if marshalErr != nil {
		data = []byte(`{"error":{"code":"INTERNAL","message":"encode error payload failed"}}`)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
