package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	ctx := WithRequestID(context.Background(), "req-42")
	FromContext(ctx).Info("refreshed", "took", 1500*time.Microsecond)
	slog.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-42" || entry["service"] != "jobhunt" {
		t.Errorf("entry = %v", entry)
	}
	if entry["took_ms"] != 1.5 {
		t.Errorf("took_ms = %v, want 1.5", entry["took_ms"])
	}
}

func TestRequestIDMissing(t *testing.T) {
	if id := RequestID(context.Background()); id != "" {
		t.Errorf("RequestID = %q, want empty", id)
	}
}
