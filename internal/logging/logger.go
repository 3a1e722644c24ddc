// Package logging builds the zap loggers used by the milk bank server.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger at level ("debug", "info", "warn", "error"; default
// info) in format ("json" or "console"; default json). A non-empty service
// name is attached to every entry.
func New(level, format, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		base = base.With(zap.String("service_name", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}
	return base, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Must is a helper that panics when the logger cannot be created.
func Must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return logger
}

// Named returns a child logger with the provided component name.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}

// Sugared adapts a zap logger to the key/value logging interface used by the
// core service: Debug, Info, Warn and Error taking a message and alternating
// keys and values.
type Sugared struct {
	s *zap.SugaredLogger
}

// NewSugared wraps base. A nil base yields a no-op logger.
func NewSugared(base *zap.Logger) Sugared {
	if base == nil {
		base = zap.NewNop()
	}
	return Sugared{s: base.Sugar()}
}

func (l Sugared) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l Sugared) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l Sugared) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l Sugared) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
