// Package logger holds the process-wide zap logger used by the beeswax CLI.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.Logger

// New builds a logger for env. "dev" gets the colored console encoder on
// stderr; everything else gets production JSON. An unparsable level keeps
// the config default.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	// stdout carries command output.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Init installs the global logger, tagged with service and env.
func Init(service, env, level string) {
	l, err := New(env, level)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	base = l.With(zap.String("service", service), zap.String("env", env))
	base.Debug("logger.initialized", zap.String("level", level))
}

// L returns the global logger, initializing a dev logger on first use.
func L() *zap.Logger {
	if base == nil {
		Init("beeswax", "dev", "info")
	}
	return base
}

// S returns the sugared form of L.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Sync flushes buffered entries. Defer it in main.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
