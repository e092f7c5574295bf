package domain

import (
	"encoding/json"
	"time"
)

// LogLevel is an RFC 5424 severity as used by MCP logging notifications.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// LogEntry is one server log record in the shape MCP clients consume.
type LogEntry struct {
	Logger    string
	Level     LogLevel
	Timestamp time.Time
	DataJSON  json.RawMessage
}
