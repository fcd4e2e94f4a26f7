// Package obslog wraps zap with the structured key-value logging shape
// every narrowest-component error handler in this module uses, replacing
// the teacher's bare log.Logger call sites with typed fields.
package obslog

import (
	"go.uber.org/zap"
)

// Logger is the shared structured-logging surface; internal/filter and
// internal/dispatch depend on the narrower Warn/Error-only views of it.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a production zap logger when dev is false, or a
// human-readable console logger when dev is true (mirrors the teacher's
// YAML "env: dev" toggle).
func New(dev bool) (*Logger, error) {
	var z *zap.Logger
	var err error
	if dev {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar()}, nil
}

func (l *Logger) Debug(msg string, fields ...any) { l.z.Debugw(msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.z.Infow(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.z.Warnw(msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.z.Errorw(msg, fields...) }

// Sync flushes any buffered log entries; callers defer this on shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }

// With returns a child logger carrying the given structured fields on
// every subsequent call.
func (l *Logger) With(fields ...any) *Logger {
	return &Logger{z: l.z.With(fields...)}
}
