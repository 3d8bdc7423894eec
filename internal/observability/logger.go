// Package observability provides the process-wide CLI logger.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger used by commands.
//
// It defaults to a no-op logger so packages can log before InitCLILogger
// runs (early flag parsing, tests).
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for the given profile.
//
// Profiles:
//
//	"cli"  human-oriented console output on stderr (default)
//	"json" structured JSON lines on stderr, for CI log collectors
//	"test" console output without timestamps, stable for test assertions
//
// verbose lowers the level from info to debug.
func InitCLILogger(profile string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch profile {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "test":
		encCfg.TimeKey = ""
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	CLILogger = zap.New(core)
}

// Sync flushes buffered log entries. Errors from stderr syncing are
// ignored; some platforms report EINVAL for character devices.
func Sync() {
	_ = CLILogger.Sync()
}
