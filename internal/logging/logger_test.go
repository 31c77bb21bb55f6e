package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, expected := range cases {
		if got := parseLevel(input); got != expected {
			t.Fatalf("parseLevel(%q) = %s, expected %s", input, got, expected)
		}
	}
}

func TestPreviewTruncatesLongText(t *testing.T) {
	preview := Preview(strings.Repeat("a", 80))
	if len(preview) != 50 {
		t.Fatalf("expected 50 characters, got %d", len(preview))
	}
	if !strings.HasSuffix(preview, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", preview)
	}
}

func TestPreviewEscapesControlAndNonASCII(t *testing.T) {
	preview := Preview("héllo\nworld")
	if strings.Contains(preview, "\n") {
		t.Fatalf("expected newline to be escaped, got %q", preview)
	}
	if preview != `h\u00e9llo\nworld` {
		t.Fatalf("unexpected preview %q", preview)
	}
	if Preview("short") != "short" {
		t.Fatalf("expected short text to pass through unchanged")
	}
}
