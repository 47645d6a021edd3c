package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

remote:
  type: "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Store.Root != "upload" {
		t.Errorf("Expected default store root 'upload', got %q", cfg.Store.Root)
	}
	if cfg.Store.Timeout != 30*time.Second {
		t.Errorf("Expected default store timeout 30s, got %v", cfg.Store.Timeout)
	}
	if cfg.Connection.DialTimeout != 10*time.Second {
		t.Errorf("Expected default dial timeout 10s, got %v", cfg.Connection.DialTimeout)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A non-existent explicit path keeps the user's own config out of the test
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Remote.Type != "sftp" {
		t.Errorf("Expected default remote type 'sftp', got %q", cfg.Remote.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[remote]
type = "badger"

[remote.badger]
path = "/var/lib/dittodocs"

[store]
root = "docs"
timeout = "5s"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Remote.Badger["path"] != "/var/lib/dittodocs" {
		t.Errorf("Expected badger path '/var/lib/dittodocs', got %v", cfg.Remote.Badger["path"])
	}
	if cfg.Store.Root != "docs" {
		t.Errorf("Expected store root 'docs', got %q", cfg.Store.Root)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Errorf("Expected store timeout 5s, got %v", cfg.Store.Timeout)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
remote:
  type: "s3"
  s3:
    region: "eu-west-1"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for S3 remote without bucket")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Remote.Type != "sftp" {
		t.Errorf("Expected default remote type 'sftp', got %q", cfg.Remote.Type)
	}
	if cfg.Remote.SFTP["host"] != "localhost" {
		t.Errorf("Expected default sftp host 'localhost', got %v", cfg.Remote.SFTP["host"])
	}
	if cfg.Documents.DefaultTitle != "Default Title" {
		t.Errorf("Expected default title 'Default Title', got %q", cfg.Documents.DefaultTitle)
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default gc interval 24h, got %v", cfg.GC.Interval)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "dittodocs" {
		t.Errorf("Expected directory name 'dittodocs', got %q", filepath.Base(dir))
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if dir := GetConfigDir(); dir != filepath.Join(tmpDir, "dittodocs") {
		t.Errorf("Expected %q, got %q", filepath.Join(tmpDir, "dittodocs"), dir)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh XDG directory")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTODOCS_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTODOCS_STORE_ROOT", "srv")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

remote:
  type: "memory"

store:
  root: "upload"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment variables override the config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Store.Root != "srv" {
		t.Errorf("Expected root 'srv' from env var, got %q", cfg.Store.Root)
	}
}
