package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Level: "info", Tool: "stream-latency-analyzer", Writer: &buf})

	logger.Info("poll_completed", "elapsed", 1500*time.Millisecond, "status", "success")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "poll_completed" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["tool"] != "stream-latency-analyzer" {
		t.Errorf("tool = %v", rec["tool"])
	}
	if rec["elapsed"] != "1.5s" {
		t.Errorf("elapsed = %v, want 1.5s", rec["elapsed"])
	}
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"json", true},
		{"JSON", true},
		{"text", false},
		{"TEXT", false},
		{"", true},
		{"logfmt", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			New(Options{Format: tt.format, Writer: &buf}).Info("hello")
			isJSON := strings.HasPrefix(strings.TrimSpace(buf.String()), "{")
			if isJSON != tt.wantJSON {
				t.Errorf("format %q produced %q", tt.format, buf.String())
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		logged  []string
		dropped []string
	}{
		{
			name:    "warn",
			opts:    Options{Format: "text", Level: "warn"},
			logged:  []string{"warn_msg", "error_msg"},
			dropped: []string{"debug_msg", "info_msg"},
		},
		{
			name:    "info",
			opts:    Options{Format: "text", Level: "info"},
			logged:  []string{"info_msg", "warn_msg"},
			dropped: []string{"debug_msg"},
		},
		{
			name:   "verbose overrides level",
			opts:   Options{Format: "text", Level: "error", Verbose: true},
			logged: []string{"debug_msg", "info_msg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Writer = &buf
			logger := New(tt.opts)
			logger.Debug("debug_msg")
			logger.Info("info_msg")
			logger.Warn("warn_msg")
			logger.Error("error_msg")

			out := buf.String()
			for _, m := range tt.logged {
				if !strings.Contains(out, m) {
					t.Errorf("expected %q in output:\n%s", m, out)
				}
			}
			for _, m := range tt.dropped {
				if strings.Contains(out, m) {
					t.Errorf("unexpected %q in output:\n%s", m, out)
				}
			}
		})
	}
}

func TestNew_VerboseAddsSource(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Format: "text", Verbose: true, Writer: &buf}).Debug("where")
	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("verbose output lacks source: %s", buf.String())
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")
	logger.Debug("segment_probe", "segment", 42)
	if !strings.Contains(buf.String(), "segment=42") {
		t.Errorf("output = %q", buf.String())
	}
	if strings.Contains(buf.String(), "tool=") {
		t.Error("no tool attribute expected without Options.Tool")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger should be disabled at every level")
	}
}

func TestSetDefault(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))
	slog.Info("via_default")
	if !strings.Contains(buf.String(), "via_default") {
		t.Errorf("default logger not installed: %q", buf.String())
	}
}
