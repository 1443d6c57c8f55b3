package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")
	if buf.Len() > 0 {
		t.Fatalf("expected no output below warn, got: %s", buf.String())
	}

	log.Warn("tiling fallback", "source", "oracle")
	out := buf.String()
	if !strings.Contains(out, `"source":"oracle"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("unexpected JSON output: %s", out)
	}
}

func TestPrettyPlainWhenNotTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug)
	log.Debug("tiles resolved", "tiling", "16_16_16_16_16_16")

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("expected no ANSI codes for a buffer, got: %q", out)
	}
	if !strings.Contains(out, "DEBUG tiles resolved tiling=16_16_16_16_16_16") {
		t.Fatalf("unexpected pretty output: %q", out)
	}
}

func TestPrettyGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo).WithGroup("plan").WithGroup("reuse")
	log.Info("classified", "a", 2)
	if !strings.Contains(buf.String(), "plan.reuse.a=2") {
		t.Fatalf("expected nested group key, got: %s", buf.String())
	}

	buf.Reset()
	slog.New(NewPrettyHandler(&buf, nil)).Info("g", slog.Group("tile", "m", 16, "n", 32))
	if !strings.Contains(buf.String(), "tile.m=16 tile.n=32") {
		t.Fatalf("expected flattened group attr, got: %s", buf.String())
	}
}

func TestPrettyWithAttrsDoesNotLeak(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := NewPrettyHandler(&buf, nil)
	child := base.WithAttrs([]slog.Attr{slog.String("component", "planner")})

	slog.New(base).Info("base")
	slog.New(child).Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if strings.Contains(lines[0], "component=") {
		t.Fatalf("parent handler picked up child attrs: %q", lines[0])
	}
	if !strings.Contains(lines[1], "component=planner") {
		t.Fatalf("child attrs missing: %q", lines[1])
	}
}

func TestPrettyHandlerEmptyGroup(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup(\"\") should return the same handler")
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bool
	}{
		{"simple", false},
		{"has space", true},
		{"has\ttab", true},
		{`has"quote`, true},
		{"k=v", true},
		{"", false},
	}
	for _, tc := range tests {
		if got := needsQuoting(tc.input); got != tc.expected {
			t.Errorf("needsQuoting(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "pretty", "json", "text"} {
		var buf bytes.Buffer
		log, err := Setup(&buf, format, "info")
		if err != nil {
			t.Fatalf("Setup(%q) error = %v", format, err)
		}
		log.Info("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("Setup(%q) output missing message: %q", format, buf.String())
		}
	}
	if _, err := Setup(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Error("dropped")
	log.With("k", "v").WithGroup("g").Info("dropped")
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("roundtrip")
	if !strings.Contains(buf.String(), "roundtrip") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}
