// Package observability holds the logger shared by CLI commands.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger used by commands. It defaults to a
// nop logger so importing packages stay quiet under test; Init replaces it
// once flags are parsed.
var CLILogger = zap.NewNop()

// Init builds CLILogger for console output on stderr. Verbose lowers the
// level to debug.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Best effort; called on exit.
func Sync() {
	_ = CLILogger.Sync()
}
