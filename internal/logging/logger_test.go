package logging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"floravision/internal/config"
	"floravision/internal/logging"
	"floravision/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("batch finished",
		logging.Int("processed", 2),
		logging.Duration("elapsed", 1500*time.Millisecond),
		logging.Error(errors.New("geocoder offline")),
	)

	content := readLog(t, cfg.LogPath())
	for _, fragment := range []string{`"msg":"batch finished"`, `"processed":2`, `"elapsed":"1.5s"`, `"error":"geocoder offline"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without source")

	if content := readLog(t, logPath); strings.Contains(content, ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with source", logging.String("cache", "miss"))

	content := readLog(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected source information in debug logs, got %q", content)
	}
	if !strings.Contains(content, "cache: miss") {
		t.Fatalf("expected raw debug field, got %q", content)
	}
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithCategory(context.Background(), "recognition")
	ctx = services.WithImagePath(ctx, "/photos/garden/rose.jpg")
	ctx = services.WithTaskID(ctx, "task-123")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "enrichment"))

	logger.Info("recognition complete", logging.Int("detections", 2), logging.String("top_label", "rose"))

	content := readLog(t, logPath)
	for _, fragment := range []string{"INFO [enrichment] Recognition · rose.jpg – recognition complete", "- Detections: 2", "- Top Label: rose"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, "task-123") {
		t.Fatalf("task id should be hidden at info level, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "geocode fell back to local matcher", "geocode_fallback",
		logging.String(logging.FieldImpact, "address is approximate"))

	content := readLog(t, logPath)
	for _, fragment := range []string{`"event_type":"geocode_fallback"`, `"error_hint":"check logs for details"`, `"impact":"address is approximate"`, `"level":"warn"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLogger(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
	logging.ErrorWithContext(nil, "ignored", "noop")
}
