package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"terse":   zapcore.InfoLevel,
		"VERBOSE": zapcore.DebugLevel,
		"quiet":   zapcore.WarnLevel,
	}
	for name, want := range tests {
		got, err := Level(name)
		if err != nil {
			t.Fatalf("level %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("level %q: want %s got %s", name, want, got)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}

	logger, err := New(LevelVerbose)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("verbose logger should enable debug")
	}
}
