package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_Log(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "audit.log")

	cfg := &Config{
		Enabled: true,
		Level:   "verbose",
		Output:  logFile,
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	logger.Log(&Event{
		Type:      EventMappingCreated,
		FieldType: "ssn",
	})

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "mapping_created") {
		t.Error("Log should contain 'mapping_created'")
	}
	if !strings.Contains(string(content), "ssn") {
		t.Error("Log should contain field type")
	}
}

func TestLogger_LogLevel_Minimal(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "audit.log")

	cfg := &Config{
		Enabled: true,
		Level:   "minimal",
		Output:  logFile,
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	// Leak detection is logged at every level.
	logger.LogLeakDetected("ssn", 1)

	// Text operations are NOT logged at minimal level.
	logger.LogTextAnonymized(3, 12.5)

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "leak_detected") {
		t.Error("Should contain leak detection event")
	}
	if strings.Contains(string(content), "text_anonymized") {
		t.Error("Should NOT contain text operation event at minimal level")
	}
}

func TestLogger_LogLevel_Standard(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "audit.log")

	cfg := &Config{
		Enabled: true,
		Level:   "standard",
		Output:  logFile,
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	// These should be logged.
	logger.LogLeakDetected("phone", 2)
	logger.LogSweepCompleted(5, 3.2)

	// Per-mapping lifecycle is NOT logged at standard level.
	logger.LogMappingCreated("email")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "leak_detected") {
		t.Error("Should contain leak detection event")
	}
	if !strings.Contains(string(content), "sweep_completed") {
		t.Error("Should contain sweep event")
	}
	if strings.Contains(string(content), "mapping_created") {
		t.Error("Should NOT contain mapping created event at standard level")
	}
}

func TestLogger_Disabled(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "audit.log")

	cfg := &Config{
		Enabled: false,
		Level:   "verbose",
		Output:  logFile,
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	logger.LogLeakDetected("ssn", 1)
	logger.LogTextAnonymized(3, 12.5)

	content, _ := os.ReadFile(logFile)
	if len(content) > 0 {
		t.Error("Log file should be empty when logging is disabled")
	}
}

func TestLogger_EnableDisable(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "audit.log")

	cfg := &Config{
		Enabled: true,
		Level:   "verbose",
		Output:  logFile,
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	logger.LogMappingCreated("name")

	logger.Disable()
	logger.LogMappingCreated("address")

	logger.Enable()
	logger.LogMappingCreated("phone")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "name") {
		t.Error("Should contain first event (enabled)")
	}
	if strings.Contains(string(content), "address") {
		t.Error("Should NOT contain second event (disabled)")
	}
	if !strings.Contains(string(content), "phone") {
		t.Error("Should contain third event (re-enabled)")
	}
}

func TestLogger_StdoutOutput(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		Level:   "verbose",
		Output:  "stdout",
		Format:  "json",
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer logger.Close()

	// Should not panic
	logger.LogLeakDetected("email", 1)
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	// Should do nothing without panicking
	logger.Log(&Event{Type: EventLeakDetected})

	var _ Recorder = logger
}

func TestEvent_ToJSON(t *testing.T) {
	event := &Event{
		Type:  EventLeakDetected,
		Kind:  "ssn",
		Count: 2,
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	if !bytes.Contains(data, []byte("leak_detected")) {
		t.Error("JSON should contain event type")
	}
	if !bytes.Contains(data, []byte("ssn")) {
		t.Error("JSON should contain kind")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("Default config should be enabled")
	}
	if cfg.Level != "standard" {
		t.Errorf("Default level = %q, want 'standard'", cfg.Level)
	}
	if cfg.Output != "stdout" {
		t.Errorf("Default output = %q, want 'stdout'", cfg.Output)
	}
	if cfg.Format != "json" {
		t.Errorf("Default format = %q, want 'json'", cfg.Format)
	}
}
