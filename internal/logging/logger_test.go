package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("forcing sent")
	logger.Debug("hidden at info level")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".vilma", "logs", "vilma.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"msg":"forcing sent"`) || !strings.Contains(text, `"logger":"vilma"`) {
		t.Fatalf("unexpected log contents: %s", text)
	}
	if strings.Contains(text, "hidden at info level") {
		t.Fatalf("debug entry written without verbose: %s", text)
	}
}

func TestVerboseLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first", "second"} {
		logger, err := New(dir, true)
		if err != nil {
			t.Fatalf("new logger: %v", err)
		}
		logger.Debug(msg)
		if err := logger.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, ".vilma", "logs", "vilma.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", lines, data)
	}
}

func TestCloseNilLogger(t *testing.T) {
	var l *Logger
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
