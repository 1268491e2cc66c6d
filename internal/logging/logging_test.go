package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	log.Info("[intake] quiet")
	log.Warn("[intake] loud", "uid", 3)

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line passed a warn filter: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, "uid=3") {
		t.Errorf("out = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colour codes written to a non-terminal: %q", out)
	}
}

func TestFanoutToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "engine.log")
	log, closer, err := New(&buf, Options{Level: "info", File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("[trello] card created", "id", "abc")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "card created") {
		t.Errorf("console = %q", buf.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &line); err != nil {
		t.Fatalf("file line is not JSON: %v (%q)", err, b)
	}
	if line["msg"] != "[trello] card created" || line["id"] != "abc" {
		t.Errorf("line = %v", line)
	}
}

func TestDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(&buf, Options{Level: "error", Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("[imap] body")
	if !strings.Contains(buf.String(), "body") {
		t.Errorf("debug line dropped: %q", buf.String())
	}
}
