package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	EventMappingCreated    EventType = "mapping_created"
	EventMappingRefreshed  EventType = "mapping_refreshed"
	EventTextAnonymized    EventType = "text_anonymized"
	EventTextDeanonymized  EventType = "text_deanonymized"
	EventRecordsAnonymized EventType = "records_anonymized"
	EventLeakDetected      EventType = "leak_detected"
	EventSweepCompleted    EventType = "sweep_completed"
	EventStoreError        EventType = "store_error"
)

// Event represents an audit log event. Events never carry plaintext PII
// or tokens; only counts, types, and timings.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	FieldType string            `json:"field_type,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Count     int               `json:"count,omitempty"`
	Duration  float64           `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Config holds audit logger configuration
type Config struct {
	// Enabled enables/disables audit logging
	Enabled bool `yaml:"enabled"`

	// Level controls what events are logged
	// "minimal" - only leak detections and store errors
	// "standard" - minimal plus text/record operations and sweeps
	// "verbose" - all events including per-mapping lifecycle
	Level string `yaml:"level"`

	// Output specifies where to write logs
	// "stdout", "stderr", or a file path
	Output string `yaml:"output"`

	// Format specifies log format: "json" or "text"
	Format string `yaml:"format"`
}

// DefaultConfig returns the default audit configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Level:   "standard",
		Output:  "stdout",
		Format:  "json",
	}
}

// Recorder is the audit sink consumed by the engine
type Recorder interface {
	Log(event *Event)
}

// Logger handles audit logging
type Logger struct {
	mu      sync.RWMutex
	config  *Config
	logger  *slog.Logger
	output  io.Writer
	enabled bool
}

// NewLogger creates a new audit logger
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		config:  cfg,
		enabled: cfg.Enabled,
	}

	if err := l.setupOutput(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Logger) setupOutput() error {
	var output io.Writer

	switch l.config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// File output
		f, err := os.OpenFile(l.config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = f
	}

	l.output = output

	var handler slog.Handler
	if l.config.Format == "json" {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	l.logger = slog.New(handler)
	return nil
}

// Log logs an audit event
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	enabled := l.enabled
	logger := l.logger
	l.mu.RUnlock()

	if !enabled || logger == nil {
		return
	}

	if !l.shouldLog(event.Type) {
		return
	}

	event.Timestamp = time.Now()

	attrs := []any{
		slog.String("type", string(event.Type)),
	}

	if event.FieldType != "" {
		attrs = append(attrs, slog.String("field_type", event.FieldType))
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	if event.Count > 0 {
		attrs = append(attrs, slog.Int("count", event.Count))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Float64("duration_ms", event.Duration))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	logger.Info("audit", attrs...)
}

func (l *Logger) shouldLog(eventType EventType) bool {
	switch l.config.Level {
	case "minimal":
		return eventType == EventLeakDetected ||
			eventType == EventStoreError
	case "standard":
		return eventType != EventMappingCreated &&
			eventType != EventMappingRefreshed
	case "verbose":
		return true
	default:
		return true
	}
}

// LogMappingCreated logs a new mapping
func (l *Logger) LogMappingCreated(fieldType string) {
	l.Log(&Event{
		Type:      EventMappingCreated,
		FieldType: fieldType,
	})
}

// LogTextAnonymized logs a free-text anonymization operation
func (l *Logger) LogTextAnonymized(fieldCount int, durationMs float64) {
	l.Log(&Event{
		Type:     EventTextAnonymized,
		Count:    fieldCount,
		Duration: durationMs,
	})
}

// LogTextDeanonymized logs a free-text de-anonymization operation
func (l *Logger) LogTextDeanonymized(restoredCount int, durationMs float64) {
	l.Log(&Event{
		Type:     EventTextDeanonymized,
		Count:    restoredCount,
		Duration: durationMs,
	})
}

// LogLeakDetected logs a leak validator hit
func (l *Logger) LogLeakDetected(kind string, count int) {
	l.Log(&Event{
		Type:  EventLeakDetected,
		Kind:  kind,
		Count: count,
	})
}

// LogSweepCompleted logs an expiry sweep
func (l *Logger) LogSweepCompleted(purged int, durationMs float64) {
	l.Log(&Event{
		Type:     EventSweepCompleted,
		Count:    purged,
		Duration: durationMs,
	})
}

// LogStoreError logs a persistence failure
func (l *Logger) LogStoreError(errMsg string) {
	l.Log(&Event{
		Type:  EventStoreError,
		Error: errMsg,
	})
}

// Enable enables audit logging
func (l *Logger) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = true
}

// Disable disables audit logging
func (l *Logger) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
}

// Close closes the logger
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.output.(io.Closer); ok {
		if l.output != os.Stdout && l.output != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// ToJSON converts an event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NopLogger is a Recorder that does nothing
type NopLogger struct{}

// NewNopLogger creates a no-op audit recorder
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Log does nothing
func (l *NopLogger) Log(_ *Event) {}
