// Package monitoring owns the process logger.
package monitoring

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(NewProductionLogger(zap.InfoLevel))
}

// NewProductionLogger builds a JSON logger writing to stderr at level.
func NewProductionLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Logger returns the current process logger.
func Logger() *zap.Logger {
	return current.Load()
}

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Logf writes a printf-style line at info level through the current logger.
func Logf(format string, v ...interface{}) {
	Logger().Sugar().Infof(format, v...)
}
