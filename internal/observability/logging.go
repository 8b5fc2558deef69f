// Package observability owns the process-wide zap loggers. Logger is the
// structured logger of the server path; CLILogger renders human-oriented
// console output for command runs. Both default to no-ops so library use and
// tests stay silent.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger    = zap.NewNop()
	CLILogger = zap.NewNop()
)

// Init builds the global loggers. level is a zap level name ("debug", "info",
// "warn", "error"); jsonOutput switches the server logger between JSON and
// console encoding.
func Init(level string, jsonOutput bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if !jsonOutput {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Logger = logger

	cliCfg := zap.NewDevelopmentConfig()
	cliCfg.Level = zap.NewAtomicLevelAt(lvl)
	cliCfg.DisableStacktrace = true
	cliCfg.DisableCaller = true
	cli, err := cliCfg.Build()
	if err != nil {
		return fmt.Errorf("build cli logger: %w", err)
	}
	CLILogger = cli
	return nil
}

// Sync flushes both loggers; safe to call on exit regardless of Init.
func Sync() {
	_ = Logger.Sync()
	_ = CLILogger.Sync()
}
