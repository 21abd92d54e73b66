package logger

import (
	"go.uber.org/zap"

	"zenix/internal/application/port/output"
)

var _ output.LoggerPort = (*LoggerAdapter)(nil)

// LoggerAdapter exposes a zap sugared logger through output.LoggerPort.
// It also satisfies retryablehttp.LeveledLogger.
type LoggerAdapter struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

func NewLoggerAdapter(cfg Config, session string) (*LoggerAdapter, error) {
	z, err := newZap(cfg, session)
	if err != nil {
		return nil, err
	}
	return wrap(z), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *LoggerAdapter {
	return wrap(zap.NewNop())
}

func wrap(z *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{base: z, sugar: z.Sugar()}
}

// Zap returns the underlying logger for libraries that take one directly.
func (l *LoggerAdapter) Zap() *zap.Logger {
	return l.base
}

func (l *LoggerAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *LoggerAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *LoggerAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *LoggerAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *LoggerAdapter) WithField(key string, value any) output.LoggerPort {
	return wrap(l.base.With(zap.Any(key, value)))
}

func (l *LoggerAdapter) WithFields(fields map[string]any) output.LoggerPort {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return wrap(l.base.With(zf...))
}

// Close flushes buffered entries. Sync errors on terminals are ignored.
func (l *LoggerAdapter) Close() error {
	_ = l.base.Sync()
	return nil
}
