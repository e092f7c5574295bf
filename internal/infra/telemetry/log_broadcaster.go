package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"ekamcp/internal/domain"
)

// DefaultLogBufferSize bounds each subscriber channel; slow subscribers
// drop entries rather than stalling the logger.
const DefaultLogBufferSize = 64

// LogBroadcaster fans server log entries out to subscribers. The MCP
// logging bridge subscribes so connected clients receive notifications
// mirroring what lands on stderr.
type LogBroadcaster struct {
	minLevel zapcore.Level
	mu       sync.RWMutex
	subs     map[chan domain.LogEntry]struct{}
}

func NewLogBroadcaster(minLevel zapcore.Level) *LogBroadcaster {
	return &LogBroadcaster{
		minLevel: minLevel,
		subs:     make(map[chan domain.LogEntry]struct{}),
	}
}

// Core returns a zapcore.Core to tee into the process logger.
func (b *LogBroadcaster) Core() zapcore.Core {
	return &broadcastCore{broadcaster: b}
}

// Subscribe registers a bounded channel that receives every published
// entry until ctx is cancelled.
func (b *LogBroadcaster) Subscribe(ctx context.Context) <-chan domain.LogEntry {
	ch := make(chan domain.LogEntry, DefaultLogBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *LogBroadcaster) publish(entry domain.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// broadcastCore adapts the broadcaster into the zap core teed alongside
// the stderr core. Structured fields accumulated via With are replayed
// into every entry's JSON payload.
type broadcastCore struct {
	broadcaster *LogBroadcaster
	fields      []zapcore.Field
}

var _ zapcore.Core = (*broadcastCore)(nil)

func (c *broadcastCore) Enabled(level zapcore.Level) bool {
	return level >= c.broadcaster.minLevel
}

func (c *broadcastCore) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &broadcastCore{broadcaster: c.broadcaster, fields: combined}
}

func (c *broadcastCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *broadcastCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	published := domain.LogEntry{
		Logger:    entry.LoggerName,
		Level:     mapZapLevel(entry.Level),
		Timestamp: entry.Time,
	}
	if published.Logger == "" {
		published.Logger = domain.ServerName
	}

	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(encoder)
	}
	for _, field := range fields {
		field.AddTo(encoder)
	}
	data := map[string]any{
		"message":   entry.Message,
		"timestamp": entry.Time.UTC().Format(time.RFC3339Nano),
	}
	if entry.LoggerName != "" {
		data["logger"] = entry.LoggerName
	}
	if len(encoder.Fields) > 0 {
		data["fields"] = encoder.Fields
	}
	raw, err := json.Marshal(data)
	if err != nil {
		// An unencodable field must not break the primary core.
		return nil
	}
	published.DataJSON = raw

	c.broadcaster.publish(published)
	return nil
}

func (c *broadcastCore) Sync() error {
	return nil
}

func mapZapLevel(level zapcore.Level) domain.LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return domain.LogLevelDebug
	case zapcore.InfoLevel:
		return domain.LogLevelInfo
	case zapcore.WarnLevel:
		return domain.LogLevelWarning
	case zapcore.ErrorLevel:
		return domain.LogLevelError
	case zapcore.DPanicLevel:
		return domain.LogLevelCritical
	case zapcore.PanicLevel:
		return domain.LogLevelAlert
	case zapcore.FatalLevel:
		return domain.LogLevelEmergency
	default:
		return domain.LogLevelInfo
	}
}
