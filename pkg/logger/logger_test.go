package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finch.log")
	defer func() { _ = Close() }()

	if err := Init(Config{Level: "debug", Format: "json", File: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info().Str("chat_id", "c1").Msg("turn started")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "turn started") {
		t.Errorf("log file missing message: %s", content)
	}
}

func TestInitWithInvalidFile(t *testing.T) {
	defer func() { _ = Close() }()
	if err := Init(Config{File: "/nonexistent/dir/finch.log"}); err == nil {
		t.Error("expected error for unwritable log path")
	}
}

func TestComponentTagsEntries(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	SetOutput(&buf)

	l := Component("driver")
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse entry: %v", err)
	}
	if entry["component"] != "driver" {
		t.Errorf("component = %v, want driver", entry["component"])
	}
}

func TestCtxAddsTraceIDs(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	SetOutput(&buf)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	Ctx(ctx).Info().Msg("traced")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse entry: %v", err)
	}
	if entry["trace_id"] != traceID.String() {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}

	buf.Reset()
	Ctx(context.Background()).Info().Msg("untraced")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id without span: %s", buf.String())
	}
}

func TestGetWithoutInit(t *testing.T) {
	mu.Lock()
	ready = false
	mu.Unlock()

	if Get() == nil {
		t.Fatal("Get() should return a default logger")
	}
}

func TestCtxPrefersContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("chat_id", "c1").Logger()
	ctx := l.WithContext(context.Background())

	Ctx(ctx).Info().Msg("scoped")
	if !strings.Contains(buf.String(), `"chat_id":"c1"`) {
		t.Errorf("context logger not used: %s", buf.String())
	}
}
