package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

// Logging bundles the process logger with the broadcaster feeding MCP
// logging notifications.
type Logging struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

// NewLogging builds the process logger. Output goes to stderr — stdout
// carries the MCP transport — plus an optional mirrored JSON file. Every
// record is teed into the broadcaster so connected MCP sessions can
// subscribe to server logs.
func NewLogging(cfg domain.LoggingSettings) (Logging, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return Logging{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return Logging{}, fmt.Errorf("build logger: %w", err)
	}

	logs := telemetry.NewLogBroadcaster(zapcore.DebugLevel)
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logs.Core())
	}))

	return Logging{Logger: logger, Broadcaster: logs}, nil
}
