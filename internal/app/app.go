// Package app wires the server's components into a runnable process:
// credentials and settings in, an MCP stdio server plus the optional
// observability listener out.
package app

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/ekaapi"
	"ekamcp/internal/infra/protocolflow"
	"ekamcp/internal/infra/telemetry"
	"ekamcp/internal/infra/toolserver"
)

// Config carries everything New needs to assemble the server.
type Config struct {
	Credentials domain.Credentials
	Settings    domain.Settings
	Logging     Logging
	Version     string
}

// App owns the assembled components for one server process.
type App struct {
	settings domain.Settings
	logger   *zap.Logger
	health   *telemetry.HealthTracker
	registry *prometheus.Registry
	client   *ekaapi.Client
	sessions *domain.SessionStore
	guard    *protocolflow.Guard
	tools    *toolserver.Server
}

// New assembles the server. It validates the credential triple and builds
// every component, but does not touch the network; Run performs the login.
func New(cfg Config) (*App, error) {
	if issues := cfg.Credentials.Validate(); len(issues) > 0 {
		return nil, errors.New(strings.Join(issues, "; "))
	}

	logger := cfg.Logging.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)
	health := telemetry.NewHealthTracker()

	client, err := ekaapi.NewClient(ekaapi.Options{
		Credentials: cfg.Credentials,
		Settings:    cfg.Settings.Upstream,
		Logger:      logger,
		Metrics:     metrics,
		Health:      health,
	})
	if err != nil {
		return nil, err
	}

	sessions := domain.NewSessionStore(
		cfg.Settings.Workflow.SessionTTL(),
		cfg.Settings.Workflow.MaxSessions,
	)
	guard := protocolflow.NewGuard(protocolflow.Options{
		API:         client,
		Sessions:    sessions,
		Logger:      logger,
		Metrics:     metrics,
		TagCacheTTL: cfg.Settings.Workflow.TagCacheTTL(),
	})

	tools, err := toolserver.NewServer(toolserver.Options{
		Guard:       guard,
		Medications: client,
		Documents:   client,
		Logger:      logger,
		Metrics:     metrics,
		Broadcaster: cfg.Logging.Broadcaster,
		Version:     cfg.Version,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	health.SetTokenStatusFunc(client.TokenStatus)
	health.SetSessionCountFunc(sessions.Len)

	return &App{
		settings: cfg.Settings,
		logger:   logger.Named("app"),
		health:   health,
		registry: registry,
		client:   client,
		sessions: sessions,
		guard:    guard,
		tools:    tools,
	}, nil
}

// Run logs in against the upstream, starts the optional observability
// listener and serves MCP over stdio until ctx is cancelled or the client
// hangs up. A failed login is fatal: the process must not register tools
// it cannot back.
func (a *App) Run(ctx context.Context) error {
	defer a.client.Close()

	if err := a.client.Login(ctx); err != nil {
		a.logger.Error("upstream login failed, re-check credentials", zap.Error(err))
		return err
	}
	a.logger.Info("upstream login succeeded")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := a.settings.Observability.ListenAddress; addr != "" {
		go func() {
			err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
				Addr:     addr,
				Health:   a.health,
				Registry: a.registry,
			}, a.logger)
			if err != nil {
				a.logger.Error("observability server exited", zap.Error(err))
				cancel()
			}
		}()
	}

	// Embed the tag corpus into the protocol tool descriptions up front
	// when the upstream cooperates; otherwise the guard fetches lazily on
	// the first protocol call and the catalog stays unenriched.
	if err := a.tools.RefreshToolCatalog(runCtx); err != nil {
		a.logger.Warn("tag corpus unavailable at startup, continuing without enriched descriptions", zap.Error(err))
	}

	return a.tools.Run(runCtx)
}
