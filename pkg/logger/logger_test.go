package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitAndGet(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	l := Get()
	if l == nil {
		t.Fatal("expected a logger")
	}

	// Smoke the level-aware paths.
	ctx := context.Background()
	l.Debug(ctx, "debug message", String("k", "v"))
	l.Info(ctx, "info message", Int("n", 1), Float64("f", 2.5))
	l.Warn(ctx, "warn message", Int64("big", 42))
	l.Error(ctx, "error message", Any("payload", map[string]int{"a": 1}))

	named := Named("pipeline")
	if named == nil {
		t.Fatal("expected a named logger")
	}
	named.Info(ctx, "named message")
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		if err := SetLevelString(in); err != nil {
			t.Errorf("SetLevelString(%q): %v", in, err)
		}
		if got := levelVar.Level(); got != want {
			t.Errorf("SetLevelString(%q): expected level %v, got %v", in, want, got)
		}
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
