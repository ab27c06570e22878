// Package logging holds the process-wide zap logger the execution core
// writes through. Components take a named child at construction time
// (logging.L().Named("sandbox")) instead of threading a logger through
// every constructor.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// Init builds the global logger: JSON at Info when ENVIRONMENT is
// production, colored console at Debug otherwise. EXECCORE_LOG_LEVEL
// overrides the level in either mode. Subsequent calls are no-ops.
func Init() {
	once.Do(func() {
		logger = build()
	})
}

func build() *zap.Logger {
	production := os.Getenv("ENVIRONMENT") == "production"

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil // reaper/cleanup warnings are too rare to sample away
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(os.Getenv("EXECCORE_LOG_LEVEL"))); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// L returns the global logger, initializing it on first use.
func L() *zap.Logger {
	Init()
	return logger
}

// Sync flushes buffered entries. Call once on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
