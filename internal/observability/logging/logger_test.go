package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerToAddsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "docsctl", "info")
	logger.Debug("hidden")
	logger.Info("document filed", "path", "Rahul/a.jpg")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, output = %q", err, buf.String())
	}
	if entry["service"] != "docsctl" || entry["path"] != "Rahul/a.jpg" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}
