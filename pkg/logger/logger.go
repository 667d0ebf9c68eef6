// Package logger constructs the zap loggers used throughout the engine.
// New returns a *zap.SugaredLogger named after a service, and Named derives
// a child logger named after a sub-component, so that log lines can be
// filtered by component.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger scoped to service and returns its
// sugared form, matching the signature pkg/ignite already expects from
// logger.New(service).
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap's production config only fails to build on a bad encoder/level
		// name, neither of which varies here; fall back to a no-op logger
		// rather than panicking the caller's constructor.
		base = zap.NewNop()
	}

	return base.Named(service).Sugar()
}

// Named derives a child logger scoped to a sub-component, e.g.
// logger.Named(parent, "merger").
func Named(parent *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if parent == nil {
		return New(name)
	}
	return parent.Named(name)
}

// Test returns a logger suitable for unit tests: development encoding,
// human-readable, no sampling.
func Test() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}
