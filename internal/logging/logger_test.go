package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scrutin/internal/config"
	"scrutin/internal/logging"
	"scrutin/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, "scrutin.log")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello", logging.String("table", "Results"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "scrutin.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello") || !strings.Contains(string(content), "table=Results") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestConsoleLoggerRendersComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "sheets").Info("read complete", logging.Int("rows", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO sheets: read complete") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "rows=3") {
		t.Fatalf("expected attribute, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithActor(context.Background(), "marie")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("state changed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v (%s)", err, content)
	}
	if payload["actor"] != "marie" || payload["correlation_id"] != "req-1" {
		t.Fatalf("missing context fields: %v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level %v", payload["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "audit dropped", "audit_dropped")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{"event_type=audit_dropped", "error_hint=", "impact="} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}
