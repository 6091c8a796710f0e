package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{"default", DefaultConfig(), false},
		{"debug", DebugConfig(), false},
		{"bad level", &Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", &Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"bad output", &Config{Level: InfoLevel, Format: TextFormat, Output: "syslog"}, true},
		{"file without path", &Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
		{"writer overrides output", &Config{Level: InfoLevel, Format: TextFormat, Writer: &bytes.Buffer{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWithFieldsPersist(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: DebugLevel, Format: JSONFormat, Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.WithComponent("engine").WithField("row", 7).Info("classified")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "engine" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["row"] != float64(7) {
		t.Errorf("expected row field 7, got %v", entry["row"])
	}
	if entry["msg"] != "classified" {
		t.Errorf("expected msg 'classified', got %v", entry["msg"])
	}
	if !log.IsDebugEnabled() {
		t.Error("expected debug to be enabled")
	}
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/logs/feerecon.log"
	log, err := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput, File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("written")
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Writer: &buf, DisableTimestamp: true})

	current := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	tracker := NewProgressTracker(ProgressConfig{
		Operation:   "analyze",
		Total:       3,
		LogInterval: time.Second,
		Logger:      log,
		Clock:       clock,
	})

	tracker.FileDone("a.csv", 4)
	current = current.Add(2 * time.Second)
	tracker.FileFailed("b.pdf", errors.New("no data"))
	tracker.FileDone("c.xlsx", 1)

	stats := tracker.Complete()
	if stats.Done != 2 || stats.Failed != 1 || stats.Total != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Percentage != 100 {
		t.Errorf("expected 100%%, got %.1f", stats.Percentage)
	}
	if stats.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", stats.Duration)
	}

	out := buf.String()
	for _, want := range []string{"Starting batch", "Statement skipped", "Progress update", "Batch completed with failures"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q", want)
		}
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Writer: &buf})

	want := errors.New("boom")
	if got := TimedOperation("render", log, func() error { return want }); got != want {
		t.Errorf("expected error to pass through, got %v", got)
	}
	if !strings.Contains(buf.String(), "Operation failed") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}
