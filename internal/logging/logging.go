package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelQuiet   = "quiet"
	LevelTerse   = "terse"
	LevelVerbose = "verbose"
)

// Level maps a verbosity name to a zap level.
func Level(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelVerbose:
		return zapcore.DebugLevel, nil
	case LevelTerse, "":
		return zapcore.InfoLevel, nil
	case LevelQuiet:
		return zapcore.WarnLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// New creates a zap logger writing console output to stderr, so stdout stays
// reserved for the committed file list.
func New(level string) (*zap.Logger, error) {
	lvl, err := Level(level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"
	encoderCfg.LevelKey = "level"
	encoderCfg.MessageKey = "msg"

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
