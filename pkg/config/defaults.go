package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodocs/pkg/document"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the transport implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyRemoteDefaults(&cfg.Remote)
	applyConnectionDefaults(&cfg.Connection)
	applyStoreDefaults(&cfg.Store)
	applyDocumentsDefaults(&cfg.Documents)
	applyGCDefaults(&cfg.GC)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyRemoteDefaults sets remote defaults.
func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.Type == "" {
		cfg.Type = "sftp"
	}

	if cfg.SFTP == nil {
		cfg.SFTP = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all backend types (for config file generation)
	setDefault(cfg.SFTP, "host", "localhost")
	setDefault(cfg.SFTP, "port", 22)
	setDefault(cfg.SFTP, "user", "dittodocs")
	setDefault(cfg.SFTP, "base_path", "/")
	if home, err := os.UserHomeDir(); err == nil {
		setDefault(cfg.SFTP, "known_hosts_path", filepath.Join(home, ".ssh", "known_hosts"))
	}

	setDefault(cfg.Badger, "path", "/tmp/dittodocs-badger")
}

func setDefault(section map[string]any, key string, value any) {
	if _, ok := section[key]; !ok {
		section[key] = value
	}
}

// applyConnectionDefaults sets session pool defaults.
func applyConnectionDefaults(cfg *ConnectionConfig) {
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	// RateLimit defaults to unlimited
}

// applyStoreDefaults sets document store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Root == "" {
		cfg.Root = "upload"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
}

// applyDocumentsDefaults sets document defaults.
func applyDocumentsDefaults(cfg *DocumentsConfig) {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = document.DefaultTitle
	}
}

// applyGCDefaults sets sweeper defaults.
func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Documents == nil {
		cfg.Documents = []string{}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Remote: RemoteConfig{
			SFTP:   make(map[string]any),
			S3:     make(map[string]any),
			Badger: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
