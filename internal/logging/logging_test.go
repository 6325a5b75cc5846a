package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestModuleLevelOverride(t *testing.T) {
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"pipeline": "debug",
			"api":      "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"pipeline", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestSetModuleLevel(t *testing.T) {
	Initialize(Config{Level: "error"})

	logger := GetLogger("linker-test")
	if logger.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info enabled before level change")
	}
	if !SetModuleLevel("linker-test", "debug") {
		t.Fatal("SetModuleLevel() = false")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after level change")
	}
	if SetModuleLevel("linker-test", "loud") {
		t.Error("SetModuleLevel() accepted an unknown level")
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewHistory(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		rb.Write(Entry{Message: msg})
	}

	got := rb.Entries()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"b", "c", "d"} {
		if got[i].Message != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Message, want)
		}
	}
}

func TestHistoryHandlerFlattensAttrs(t *testing.T) {
	rb := NewHistory(10)
	logger := slog.New(NewHistoryHandler(rb, slog.LevelDebug)).With("module", "controller")

	logger.WithGroup("timing").Info("state changed",
		"took", 250*time.Millisecond,
		"error", errors.New("boom"),
		slog.Group("graph", "name", "pipeline_v1"))

	entries := rb.Entries()
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "controller" {
		t.Errorf("Module = %q, want controller", e.Module)
	}
	if e.Level != "info" {
		t.Errorf("Level = %q, want info", e.Level)
	}
	want := map[string]any{
		"timing.took":       "250ms",
		"timing.error":      "boom",
		"timing.graph.name": "pipeline_v1",
	}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("Attributes[%q] = %v, want %v", k, e.Attributes[k], v)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, true", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("ParseLevel(verbose) ok = true")
	}
}
