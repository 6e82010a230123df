// Package logger adapts zap to the auth.Logger interface.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-course-auth"
)

// Config selects level, mode (development or production) and encoding (json or console)
type Config struct {
	Level    string
	Mode     string
	Encoding string
}

// Logger implements auth.Logger on a zap sugared logger. Messages are
// followed by alternating key value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ auth.Logger = (*Logger)(nil)

func New(cfg Config) (*Logger, error) {
	var zcfg zap.Config
	if strings.EqualFold(cfg.Mode, "development") {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.Encoding != "" {
		zcfg.Encoding = strings.ToLower(cfg.Encoding)
	}

	z, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return Wrap(z), nil
}

// Wrap adapts an existing zap logger
func Wrap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

// Nop discards everything
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugw(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infow(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnw(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorw(format, args...)
}

// Named returns a child logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
