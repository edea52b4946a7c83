// Package forgelog holds the process-wide structured logger. The engine logs
// CRC mismatches and pool exhaustion at Warn and structural tree events
// (splits, merges, borrows) at Debug.
package forgelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// Init builds the console logger. With verbose set, Debug events
// (split/merge/rebalance traces) are emitted too.
func Init(verbose bool) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return
	}
	logger = l
}

// L returns the current logger.
func L() *zap.Logger { return logger }

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }

// Sync flushes any buffered log entries.
func Sync() { _ = logger.Sync() }
