// Package toolserver exposes the healthcare tool set over MCP stdio. It
// owns tool registration, argument validation, per-call instrumentation
// and the translation of classified failures into self-correcting error
// results.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ekamcp/internal/buildinfo"
	"ekamcp/internal/domain"
	"ekamcp/internal/infra/ekaapi"
	"ekamcp/internal/infra/telemetry"
)

const serverInstructions = "ekamcp exposes Eka healthcare tools. Medication tools are stateless and can be called in any order. Treatment-protocol tools are progressive: confirm a condition tag with protocol_tags, then a publisher with protocol_publishers, then query with search_protocols. An out-of-order call returns the valid options for the step still required."

// MedicationAPI is the slice of the Eka client the medication tools need.
type MedicationAPI interface {
	SearchMedications(ctx context.Context, search ekaapi.MedicationSearch) ([]domain.Drug, error)
	DrugInteractions(ctx context.Context, compositionA, compositionB string) ([]domain.Interaction, error)
}

// DocumentFetcher retrieves rendered protocol pages referenced by search
// hits.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL string) ([]byte, string, error)
}

// WorkflowGuard is the protocol workflow surface the tool handlers drive.
type WorkflowGuard interface {
	SupportedTags(ctx context.Context) ([]domain.Tag, error)
	CachedTags() ([]domain.Tag, bool)
	Session(sessionKey string) domain.WorkflowSession
	ConfirmTag(ctx context.Context, sessionKey, candidate string) (domain.Tag, error)
	ConfirmPublisher(ctx context.Context, sessionKey, candidate string) (domain.Publisher, error)
	Publishers(ctx context.Context, sessionKey string) ([]domain.Publisher, error)
	Search(ctx context.Context, sessionKey, query string) ([]domain.ProtocolDocument, domain.ProtocolQuery, error)
}

// Options configures the tool server.
type Options struct {
	Guard       WorkflowGuard
	Medications MedicationAPI
	Documents   DocumentFetcher
	Logger      *zap.Logger
	Metrics     domain.Metrics
	Broadcaster *telemetry.LogBroadcaster
	Version     string
}

// Server wraps an MCP server with the fixed healthcare tool set.
type Server struct {
	server      *mcp.Server
	guard       WorkflowGuard
	medications MedicationAPI
	documents   DocumentFetcher
	logger      *zap.Logger
	metrics     domain.Metrics
	broadcaster *telemetry.LogBroadcaster
	schemas     map[string]*jsonschema.Resolved
	bridgeOnce  sync.Once
}

// NewServer builds the MCP server and registers the tool set. Protocol
// tool descriptions start without tag names; RefreshToolCatalog enriches
// them once the corpus is available.
func NewServer(opts Options) (*Server, error) {
	if opts.Guard == nil {
		return nil, errors.New("workflow guard is required")
	}
	if opts.Medications == nil {
		return nil, errors.New("medication api is required")
	}
	if opts.Documents == nil {
		return nil, errors.New("document fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = buildinfo.Version
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	s := &Server{
		guard:       opts.Guard,
		medications: opts.Medications,
		documents:   opts.Documents,
		logger:      logger.Named("toolserver"),
		metrics:     metrics,
		broadcaster: opts.Broadcaster,
		schemas:     make(map[string]*jsonschema.Resolved),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    domain.ServerName,
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		Instructions: serverInstructions,
	})

	for _, tool := range s.toolSet(nil) {
		resolved, err := compileInputSchema(tool)
		if err != nil {
			return nil, err
		}
		s.schemas[tool.Name] = resolved
	}
	s.addTools(nil)
	return s, nil
}

// toolSet returns the full tool definitions, enriching the protocol tool
// descriptions with the supported tag names when available.
func (s *Server) toolSet(tags []string) []*mcp.Tool {
	return []*mcp.Tool{
		medicationUnderstandingTool(),
		medicationInteractionTool(),
		protocolTagsTool(tags),
		protocolPublishersTool(tags),
		searchProtocolsTool(tags),
	}
}

func (s *Server) addTools(tags []string) {
	handlers := map[string]toolFunc{
		toolMedicationUnderstanding: s.handleMedicationUnderstanding,
		toolMedicationInteraction:   s.handleMedicationInteraction,
		toolProtocolTags:            s.handleProtocolTags,
		toolProtocolPublishers:      s.handleProtocolPublishers,
		toolSearchProtocols:         s.handleSearchProtocols,
	}
	for _, tool := range s.toolSet(tags) {
		s.server.AddTool(tool, s.wrap(tool.Name, handlers[tool.Name]))
	}
}

// RefreshToolCatalog fetches the tag corpus and re-registers the tools
// with tag-enriched descriptions. Re-adding under the same names replaces
// the definitions, which notifies connected clients via tools/list_changed.
func (s *Server) RefreshToolCatalog(ctx context.Context) error {
	tags, err := s.guard.SupportedTags(ctx)
	if err != nil {
		return domain.Wrap(domain.CodeUpstreamUnavailable, "refresh tool catalog", err)
	}
	s.addTools(domain.TagNames(tags))
	s.logger.Info("tool catalog enriched with tag corpus", zap.Int("tags", len(tags)))
	return nil
}

// Run serves MCP over stdio until ctx is cancelled or the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.startLogBridge(runCtx)
	s.logger.Info("mcp server starting (stdio transport)")
	return s.server.Run(runCtx, &mcp.StdioTransport{})
}

// Connect binds the server to one transport without blocking. The stdio
// path uses Run; tests drive the server over in-memory transports here.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	s.startLogBridge(ctx)
	return s.server.Connect(ctx, transport, nil)
}

// toolFunc is a domain-level handler: it returns the JSON payload plus any
// extra content items. The wrapper owns validation context, logging,
// metrics and result encoding.
type toolFunc func(ctx context.Context, req *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error)

func (s *Server) wrap(name string, fn toolFunc) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, _ = telemetry.TagCall(ctx, "")
		logger := telemetry.CallLogger(ctx, s.logger).With(
			telemetry.ToolField(name),
			telemetry.SessionField(sessionKey(req)),
		)

		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = json.RawMessage(req.Params.Arguments)
		}
		payload, extra, err := fn(ctx, req, raw)

		duration := time.Since(start)
		outcome := domain.ToolOutcomeFromError(err)
		s.metrics.ObserveToolCall(domain.ToolCallMetric{
			Tool:     name,
			Outcome:  outcome,
			Duration: duration,
		})

		if err != nil {
			logger.Warn("tool call failed",
				telemetry.OutcomeField(outcome),
				telemetry.DurationField(duration),
				zap.Error(err),
			)
			return errorResult(ctx, err), nil
		}

		result, encodeErr := successResult(payload, extra...)
		if encodeErr != nil {
			logger.Error("encode tool result failed", zap.Error(encodeErr))
			return errorResult(ctx, encodeErr), nil
		}
		logger.Info("tool call completed",
			telemetry.OutcomeField(outcome),
			telemetry.DurationField(duration),
		)
		return result, nil
	}
}

func (s *Server) startLogBridge(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	s.bridgeOnce.Do(func() {
		go runLogBridge(ctx, s.server, s.broadcaster, s.logger)
	})
}
