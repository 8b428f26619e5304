package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNewFromConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewFromConfig(Config{Level: "WARN", Format: "json"}, buf)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}

	log.Info().Msg("hidden")
	log.Warn().Str("file_key", "incoming/1_a.csv").Msg("shown")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", out, err)
	}
	if entry["file_key"] != "incoming/1_a.csv" || entry["level"] != "warn" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewFromConfigConsoleDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewFromConfig(Config{}, buf)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	log.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got JSON: %s", buf.String())
	}
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", log.GetLevel())
	}
}

func TestNewFromConfigInvalid(t *testing.T) {
	if _, err := NewFromConfig(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewFromConfig(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	if ctx.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	l := FromContext(ctx)
	l.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestFromContextOr(t *testing.T) {
	buf := &bytes.Buffer{}
	l := FromContextOr(context.Background(), NewWithWriter(buf))
	l.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("fallback logger not used: %q", buf.String())
	}
}
