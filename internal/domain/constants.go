package domain

const (
	// ServerName identifies this server in the MCP initialize handshake.
	ServerName = "ekamcp"

	DefaultRequestTimeoutSeconds     = 30
	DefaultMaxConnections            = 10
	DefaultMaxIdleConnections        = 5
	DefaultTokenRefreshLeewaySeconds = 60
	DefaultMaxSessions               = 256
	DefaultSessionTTLSeconds         = 0
	DefaultTagCacheTTLSeconds        = 0
	DefaultLogLevel                  = "info"
)
