package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalization(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Remote(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Remote.Type != "sftp" {
		t.Errorf("Expected default remote type 'sftp', got %q", cfg.Remote.Type)
	}

	if cfg.Remote.SFTP == nil {
		t.Fatal("Expected SFTP map to be initialized")
	}
	if port, ok := cfg.Remote.SFTP["port"]; !ok || port != 22 {
		t.Errorf("Expected default sftp port 22, got %v", port)
	}
	if base, ok := cfg.Remote.SFTP["base_path"]; !ok || base != "/" {
		t.Errorf("Expected default sftp base_path '/', got %v", base)
	}

	if cfg.Remote.Badger == nil {
		t.Fatal("Expected Badger map to be initialized")
	}
	if path, ok := cfg.Remote.Badger["path"]; !ok || path != "/tmp/dittodocs-badger" {
		t.Errorf("Expected default badger path '/tmp/dittodocs-badger', got %v", path)
	}
}

func TestApplyDefaults_Connection(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Connection.ProbeInterval != 5*time.Second {
		t.Errorf("Expected default probe interval 5s, got %v", cfg.Connection.ProbeInterval)
	}
	if cfg.Connection.DialTimeout != 10*time.Second {
		t.Errorf("Expected default dial timeout 10s, got %v", cfg.Connection.DialTimeout)
	}
	if cfg.Connection.RateLimit.OpsPerSecond != 0 {
		t.Errorf("Expected unlimited rate by default, got %d", cfg.Connection.RateLimit.OpsPerSecond)
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Root != "upload" {
		t.Errorf("Expected default root 'upload', got %q", cfg.Store.Root)
	}
	if cfg.Store.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Store.Timeout)
	}
}

func TestApplyDefaults_GC(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.GC.Enabled {
		t.Error("Expected gc disabled by default")
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default interval 24h, got %v", cfg.GC.Interval)
	}
	if cfg.GC.Documents == nil || len(cfg.GC.Documents) != 0 {
		t.Errorf("Expected empty document list, got %v", cfg.GC.Documents)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "WARN",
			Format: "json",
			Output: "stderr",
		},
		Remote: RemoteConfig{
			Type: "sftp",
			SFTP: map[string]any{
				"host": "files.example.com",
				"port": 2222,
			},
		},
		Connection: ConnectionConfig{
			ProbeInterval: time.Minute,
			DialTimeout:   3 * time.Second,
		},
		Store: StoreConfig{
			Root:    "/srv/docs",
			Timeout: 2 * time.Second,
		},
		Documents: DocumentsConfig{DefaultTitle: "Untitled"},
		Metrics:   MetricsConfig{Port: 9100},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Explicit logging values not preserved: %+v", cfg.Logging)
	}
	if cfg.Remote.SFTP["host"] != "files.example.com" {
		t.Errorf("Expected host 'files.example.com', got %v", cfg.Remote.SFTP["host"])
	}
	if cfg.Remote.SFTP["port"] != 2222 {
		t.Errorf("Expected port 2222, got %v", cfg.Remote.SFTP["port"])
	}
	if cfg.Connection.ProbeInterval != time.Minute {
		t.Errorf("Expected probe interval 1m, got %v", cfg.Connection.ProbeInterval)
	}
	if cfg.Store.Root != "/srv/docs" || cfg.Store.Timeout != 2*time.Second {
		t.Errorf("Explicit store values not preserved: %+v", cfg.Store)
	}
	if cfg.Documents.DefaultTitle != "Untitled" {
		t.Errorf("Expected title 'Untitled', got %q", cfg.Documents.DefaultTitle)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected metrics port 9100, got %d", cfg.Metrics.Port)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid, got: %v", err)
	}
}
