package domain

import (
	"fmt"
	"net"
	"strings"
)

// Settings is the optional runtime configuration loaded from a YAML file.
// Everything has a working default; the file only overrides. Credentials
// are deliberately NOT part of the file — they arrive as flags and stay
// out of anything that could be committed to dotfiles.
type Settings struct {
	Upstream      UpstreamSettings      `mapstructure:"upstream" yaml:"upstream"`
	Workflow      WorkflowSettings      `mapstructure:"workflow" yaml:"workflow"`
	Observability ObservabilitySettings `mapstructure:"observability" yaml:"observability"`
	Logging       LoggingSettings       `mapstructure:"logging" yaml:"logging"`
}

// UpstreamSettings tunes the HTTPS client talking to the Eka API.
type UpstreamSettings struct {
	RequestTimeoutSeconds     int `mapstructure:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	MaxConnections            int `mapstructure:"maxConnections" yaml:"maxConnections"`
	MaxIdleConnections        int `mapstructure:"maxIdleConnections" yaml:"maxIdleConnections"`
	TokenRefreshLeewaySeconds int `mapstructure:"tokenRefreshLeewaySeconds" yaml:"tokenRefreshLeewaySeconds"`
}

// WorkflowSettings bounds the per-session protocol workflow store and the
// process-wide tag corpus cache.
type WorkflowSettings struct {
	MaxSessions        int `mapstructure:"maxSessions" yaml:"maxSessions"`
	SessionTTLSeconds  int `mapstructure:"sessionTTLSeconds" yaml:"sessionTTLSeconds"`
	TagCacheTTLSeconds int `mapstructure:"tagCacheTTLSeconds" yaml:"tagCacheTTLSeconds"`
}

// ObservabilitySettings controls the optional metrics/health listener.
// An empty address keeps it disabled, which is the right default for a
// stdio server spawned by an MCP client.
type ObservabilitySettings struct {
	ListenAddress string `mapstructure:"listenAddress" yaml:"listenAddress"`
}

// LoggingSettings controls log verbosity and the optional mirrored file.
// Logs always go to stderr; stdout carries the MCP transport.
type LoggingSettings struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DefaultSettings returns the settings used when no file is supplied.
func DefaultSettings() Settings {
	return Settings{
		Upstream: UpstreamSettings{
			RequestTimeoutSeconds:     DefaultRequestTimeoutSeconds,
			MaxConnections:            DefaultMaxConnections,
			MaxIdleConnections:        DefaultMaxIdleConnections,
			TokenRefreshLeewaySeconds: DefaultTokenRefreshLeewaySeconds,
		},
		Workflow: WorkflowSettings{
			MaxSessions:        DefaultMaxSessions,
			SessionTTLSeconds:  DefaultSessionTTLSeconds,
			TagCacheTTLSeconds: DefaultTagCacheTTLSeconds,
		},
		Logging: LoggingSettings{
			Level: DefaultLogLevel,
		},
	}
}

// Normalize fills defaulted fields and trims free-form strings in place.
func (s *Settings) Normalize() {
	if s.Upstream.RequestTimeoutSeconds <= 0 {
		s.Upstream.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if s.Upstream.MaxConnections <= 0 {
		s.Upstream.MaxConnections = DefaultMaxConnections
	}
	if s.Upstream.MaxIdleConnections <= 0 {
		s.Upstream.MaxIdleConnections = DefaultMaxIdleConnections
	}
	if s.Upstream.TokenRefreshLeewaySeconds <= 0 {
		s.Upstream.TokenRefreshLeewaySeconds = DefaultTokenRefreshLeewaySeconds
	}
	if s.Workflow.MaxSessions <= 0 {
		s.Workflow.MaxSessions = DefaultMaxSessions
	}
	if s.Workflow.SessionTTLSeconds < 0 {
		s.Workflow.SessionTTLSeconds = 0
	}
	if s.Workflow.TagCacheTTLSeconds < 0 {
		s.Workflow.TagCacheTTLSeconds = 0
	}
	s.Observability.ListenAddress = strings.TrimSpace(s.Observability.ListenAddress)
	s.Logging.Level = strings.ToLower(strings.TrimSpace(s.Logging.Level))
	if s.Logging.Level == "" {
		s.Logging.Level = DefaultLogLevel
	}
	s.Logging.File = strings.TrimSpace(s.Logging.File)
}

// Validate collects every problem with the settings rather than stopping
// at the first, so one edit pass can fix a bad file.
func (s Settings) Validate() []string {
	var issues []string
	if s.Upstream.MaxIdleConnections > s.Upstream.MaxConnections {
		issues = append(issues, fmt.Sprintf(
			"upstream.maxIdleConnections (%d) must not exceed upstream.maxConnections (%d)",
			s.Upstream.MaxIdleConnections, s.Upstream.MaxConnections))
	}
	if addr := s.Observability.ListenAddress; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			issues = append(issues, fmt.Sprintf("observability.listenAddress %q is not host:port", addr))
		}
	}
	switch s.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not one of debug|info|warn|error", s.Logging.Level))
	}
	return issues
}
