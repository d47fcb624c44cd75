// Package config provides configuration management for the PII anonymizer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hfi/pii-anonymizer/internal/audit"
)

// Duration wraps time.Duration so YAML values like "24h" decode cleanly.
type Duration time.Duration

// UnmarshalYAML parses either a Go duration string or a nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the main configuration structure
type Config struct {
	Hashing Hashing       `yaml:"hashing"`
	Storage Storage       `yaml:"storage"`
	Sweep   Sweep         `yaml:"sweep"`
	Logging Logging       `yaml:"logging"`
	Audit   *audit.Config `yaml:"audit"`
	Server  Server        `yaml:"server"`
}

// Hashing contains lookup-hash key settings
type Hashing struct {
	// Key is the hex-encoded 256-bit HMAC key. Empty means an ephemeral
	// key is generated at startup; mappings then do not survive restarts.
	Key string `yaml:"key"` //#nosec G117 -- Key field is intentional for keyed-hash config
}

// Storage contains mapping store settings
type Storage struct {
	Type  string   `yaml:"type"` // "memory", "bolt" or "redis"
	Path  string   `yaml:"path"` // bolt database file
	Redis Redis    `yaml:"redis"`
	TTL   Duration `yaml:"ttl"`
}

// Redis contains Redis connection settings
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"` //#nosec G117 -- Password field is intentional for Redis auth config
	DB       int    `yaml:"db"`
}

// Sweep contains expiry sweep settings
type Sweep struct {
	Interval Duration `yaml:"interval"`
}

// Logging contains process logging settings
type Logging struct {
	Level string `yaml:"level"`
}

// Server contains ops HTTP server settings
type Server struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
	HealthPath  string `yaml:"health_path"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: Storage{
			Type: "bolt",
			Path: "./data/mappings.db",
			TTL:  Duration(24 * time.Hour),
			Redis: Redis{
				Address: "localhost:6379",
				DB:      0,
			},
		},
		Sweep: Sweep{
			Interval: Duration(time.Hour),
		},
		Logging: Logging{
			Level: "info",
		},
		Audit: audit.DefaultConfig(),
		Server: Server{
			Addr:        ":9090",
			MetricsPath: "/metrics",
			HealthPath:  "/health",
		},
	}
}

// Load loads the configuration from file or environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Check for config file path in environment or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Sanitize and validate path to prevent path traversal
	configPath = sanitizeConfigPath(configPath)

	data, err := os.ReadFile(configPath) //#nosec G304 -- config path is sanitized above
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "memory", "bolt", "redis":
	default:
		return fmt.Errorf("invalid storage type %q", c.Storage.Type)
	}
	if c.Storage.TTL <= 0 {
		return fmt.Errorf("storage ttl must be positive, got %v", c.Storage.TTL)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", c.Sweep.Interval)
	}
	return nil
}

// sanitizeConfigPath cleans and validates a config file path
func sanitizeConfigPath(path string) string {
	// Clean the path to remove any . or .. components
	cleaned := filepath.Clean(path)

	// If path is absolute, use it as-is (operator explicitly set full path)
	// If relative, ensure it doesn't escape the current directory
	if !filepath.IsAbs(cleaned) {
		for len(cleaned) > 2 && cleaned[:3] == "../" {
			cleaned = cleaned[3:]
		}
		if cleaned == ".." {
			cleaned = "config.yaml"
		}
	}

	return cleaned
}
