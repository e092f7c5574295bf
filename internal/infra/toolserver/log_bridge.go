package toolserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ekamcp/internal/infra/telemetry"
)

// runLogBridge forwards broadcaster entries to every connected MCP session
// as notifications/message. Delivery is best effort: a session that went
// away mid-send is the SDK's problem, not ours.
func runLogBridge(ctx context.Context, server *mcp.Server, broadcaster *telemetry.LogBroadcaster, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("log_bridge")

	entries := broadcaster.Subscribe(ctx)
	for entry := range entries {
		params := &mcp.LoggingMessageParams{
			Logger: entry.Logger,
			Level:  mcp.LoggingLevel(entry.Level),
			Data:   entry.DataJSON,
		}
		for session := range server.Sessions() {
			_ = session.Log(ctx, params)
		}
	}
	logger.Debug("log bridge stopped")
}
