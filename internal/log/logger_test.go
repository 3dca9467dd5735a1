package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(LoggerOptions{Level: "loud"}); err == nil {
		t.Error("NewLogger() accepted an invalid level")
	}

	file := filepath.Join(t.TempDir(), "logs", "sort-me-down.log")
	logger, err := NewLogger(LoggerOptions{Level: "warn", File: file})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("visible")
	logger.Sync()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("log file has %d lines, want 1: %s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "visible" || entry["timestamp"] == nil {
		t.Errorf("unexpected entry %v", entry)
	}
}
