// Package log writes JSON log lines through zap. Every line of a session
// logger carries the session identity (session_id, detector, link,
// fee_id); call-site fields nest under "fields".
package log

import (
	"io"
	"maps"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/hbframe/types"
)

// Logger is a leveled JSON logger.
type Logger struct {
	zap   *zap.Logger
	ctx   []zap.Field
	level zapcore.Level
}

// NewLogger logs every level to stderr. A nil meta gives a logger without
// session fields.
func NewLogger(meta *types.SessionMeta) *Logger {
	return build(os.Stderr, zapcore.DebugLevel, sessionFields(meta))
}

// NewLoggerLevel is NewLogger with a minimum level (debug, info, warn,
// error). Unknown names select info.
func NewLoggerLevel(meta *types.SessionMeta, level string) *Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	return build(os.Stderr, lvl, sessionFields(meta))
}

func build(w io.Writer, level zapcore.Level, ctx []zap.Field) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return &Logger{zap: zap.New(core).With(ctx...), ctx: ctx, level: level}
}

func sessionFields(meta *types.SessionMeta) []zap.Field {
	if meta == nil {
		return nil
	}
	fields := []zap.Field{zap.String("session_id", meta.SessionID)}
	if meta.Detector != "" {
		fields = append(fields, zap.String("detector", meta.Detector))
	}
	if meta.Link != "" {
		fields = append(fields, zap.String("link", meta.Link))
	}
	return append(fields, zap.Uint16("fee_id", meta.FeeID))
}

// WithOutput returns a copy writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return build(w, l.level, l.ctx)
}

// With returns a copy that adds fields to every line, in key order.
func (l *Logger) With(fields map[string]any) *Logger {
	ctx := slices.Clone(l.ctx)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		ctx = append(ctx, zap.Any(k, fields[k]))
	}
	return &Logger{zap: l.zap.With(ctx[len(l.ctx):]...), ctx: ctx, level: l.level}
}

func (l *Logger) log(level zapcore.Level, msg string, fields map[string]any) {
	ce := l.zap.Check(level, msg)
	if ce == nil {
		return
	}
	if len(fields) == 0 {
		ce.Write()
		return
	}
	ce.Write(zap.Any("fields", fields))
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(zapcore.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(zapcore.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(zapcore.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(zapcore.ErrorLevel, msg, fields) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
