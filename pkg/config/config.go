package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittodocs configuration.
//
// This structure captures all configurable aspects of dittodocs including:
//   - Logging configuration
//   - Remote file service selection and configuration (backend-specific)
//   - Session pool tuning
//   - Document store layout and timeouts
//   - Sidecar sweeper and metrics settings
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTODOCS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each transport implementation defines its own configuration type. The
// Remote section carries one map per backend (remote.sftp, remote.s3, ...)
// and only the map matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Remote specifies the remote file service and its backend-specific settings
	Remote RemoteConfig `mapstructure:"remote"`

	// Connection tunes the shared remote session
	Connection ConnectionConfig `mapstructure:"connection"`

	// Store controls where and how documents are stored on the remote
	Store StoreConfig `mapstructure:"store"`

	// Documents contains document creation settings
	Documents DocumentsConfig `mapstructure:"documents"`

	// GC configures the orphaned sidecar sweeper
	GC GCConfig `mapstructure:"gc"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// RemoteConfig specifies the remote file service.
//
// The Type field determines which transport implementation is used.
// Only the corresponding type-specific configuration section is used.
type RemoteConfig struct {
	// Type specifies which transport implementation to use
	// Valid values: sftp, s3, badger, memory
	Type string `mapstructure:"type" validate:"required,oneof=sftp s3 badger memory"`

	// SFTP contains SFTP-specific configuration
	// Only used when Type = "sftp"
	SFTP map[string]any `mapstructure:"sftp"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// ConnectionConfig tunes the session pool.
type ConnectionConfig struct {
	// ProbeInterval limits liveness probes of the shared session to one per
	// interval (0 probes on every acquire)
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gte=0"`

	// DialTimeout bounds a single connection attempt
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"required,gt=0"`

	// RateLimit throttles calls against the remote service
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures the token bucket in front of the remote.
type RateLimitConfig struct {
	// OpsPerSecond is the sustained call rate (0 = unlimited)
	OpsPerSecond uint `mapstructure:"ops_per_second"`

	// Burst is the bucket size (0 = OpsPerSecond)
	Burst uint `mapstructure:"burst"`
}

// StoreConfig controls the document layout on the remote.
type StoreConfig struct {
	// Root is the remote directory holding every document
	Root string `mapstructure:"root" validate:"required"`

	// Timeout bounds each store operation
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
}

// DocumentsConfig contains document creation settings.
type DocumentsConfig struct {
	// DefaultTitle is the title of the home page of new documents
	DefaultTitle string `mapstructure:"default_title" validate:"required"`
}

// GCConfig configures the orphaned sidecar sweeper.
type GCConfig struct {
	// Enabled starts background sweeping with the server
	Enabled bool `mapstructure:"enabled"`

	// Interval is the time between two sweeps
	Interval time.Duration `mapstructure:"interval" validate:"required,gt=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run"`

	// Documents restricts sweeping to these document ids (empty = all)
	Documents []string `mapstructure:"documents" validate:"dive,required"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Port of the metrics HTTP server
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTODOCS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTODOCS_ prefix and underscores
	// Example: DITTODOCS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittodocs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar settings that can be set from the environment
// without a config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"remote.type",
	"store.root",
	"store.timeout",
	"connection.probe_interval",
	"connection.dial_timeout",
	"documents.default_title",
	"gc.enabled",
	"gc.dry_run",
	"gc.interval",
	"metrics.enabled",
	"metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodocs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodocs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
