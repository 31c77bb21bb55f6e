package logging

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	previewLimit  = 50
	previewSuffix = "..."
)

// NewLogger returns a zap logger configured for structured production logging.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Preview renders user text as a single ASCII-safe line capped at 50 characters,
// suitable for log fields. Only diagnostics use it.
func Preview(text string) string {
	quoted := strconv.QuoteToASCII(text)
	escaped := quoted[1 : len(quoted)-1]
	if len(escaped) > previewLimit {
		return escaped[:previewLimit-len(previewSuffix)] + previewSuffix
	}
	return escaped
}

// PreviewField wraps Preview as a zap field.
func PreviewField(key, text string) zap.Field {
	return zap.String(key, Preview(text))
}
