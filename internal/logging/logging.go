// Package logging builds the structured logger used across the
// ingester. It mirrors the severities the original C implementation
// wrote through its log_message() function (DEBUG, INFO, WARNING,
// ERROR, CRITICAL) on top of zap, which has no built-in CRITICAL level.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the minimum severity that gets written out.
	Level zapcore.Level
}

// DefaultConfig returns the logging defaults used when --log-level is
// not given or not recognised.
func DefaultConfig() *Config {
	return &Config{Level: zapcore.InfoLevel}
}

// Init builds the sugared logger and its atomic level, so verbosity can
// be raised at runtime (e.g. from a future signal handler or admin
// endpoint) without rebuilding the logger.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), zapCfg.Level, nil
}

// LevelFromString parses a CLI --log-level value into a zapcore.Level,
// accepting the same names zapcore.Level's own UnmarshalText does.
func LevelFromString(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// WithThread tags a logger with the owning receive/write thread id, the
// way every line in the original log_message() carried a "Thread-%d"
// field.
func WithThread(log *zap.SugaredLogger, threadID int) *zap.SugaredLogger {
	return log.With("thread", threadID)
}

// Critical logs at error level with an explicit severity field. zap has
// no built-in CRITICAL level; the original reserved CRITICAL for
// failures that leave a stream permanently unusable (socket
// create/bind), as distinct from ERROR for a single recoverable
// failure (one channel's file-open).
func Critical(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, append([]interface{}{"severity", "critical"}, keysAndValues...)...)
}
