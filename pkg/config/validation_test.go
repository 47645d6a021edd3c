package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidRemoteType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.Type = "ftp"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid remote type")
	}
	if !strings.Contains(err.Error(), "Remote.Type") {
		t.Errorf("Expected error on Remote.Type, got: %v", err)
	}
}

func TestValidate_SFTPMissingHost(t *testing.T) {
	cfg := GetDefaultConfig()
	delete(cfg.Remote.SFTP, "host")

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for sftp remote without host")
	}
	if !strings.Contains(err.Error(), "remote.sftp") {
		t.Errorf("Expected error prefixed with remote.sftp, got: %v", err)
	}
}

func TestValidate_SFTPInvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.SFTP["port"] = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sftp port out of range")
	}
}

func TestValidate_SFTPPortFromString(t *testing.T) {
	// Environment overrides arrive as strings
	cfg := GetDefaultConfig()
	cfg.Remote.SFTP["port"] = "2222"

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected string port to be accepted, got: %v", err)
	}
}

func TestValidate_S3(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.Type = "s3"
	cfg.Remote.S3 = map[string]any{"region": "eu-west-1"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for S3 remote without bucket")
	}

	cfg.Remote.S3["bucket"] = "documents"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid S3 remote, got: %v", err)
	}

	cfg.Remote.S3["endpoint"] = "not a url"
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for malformed S3 endpoint")
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.Type = "badger"
	cfg.Remote.Badger = map[string]any{}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for badger remote without path")
	}

	cfg.Remote.Badger["in_memory"] = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected in-memory badger to need no path, got: %v", err)
	}
}

func TestValidate_MemoryRemote(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.Type = "memory"
	cfg.Remote.SFTP = nil

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected memory remote to be valid, got: %v", err)
	}
}

func TestValidate_EmptyRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Root = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for empty store root")
	}
}

func TestValidate_InvalidTimeouts(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Timeout = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative store timeout")
	}

	cfg = GetDefaultConfig()
	cfg.Connection.DialTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero dial timeout")
	}
}

func TestValidate_InvalidGCDocument(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.GC.Documents = []string{"doc1", "../etc"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid document id")
	}
	if !strings.Contains(err.Error(), "gc.documents[1]") {
		t.Errorf("Expected error on gc.documents[1], got: %v", err)
	}
}

func TestValidate_BurstWithoutRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.RateLimit.Burst = 10

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for burst without rate")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for metrics port out of range")
	}
}

func TestValidate_LogLevelLowercase(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Expected lowercase level %q to validate, got: %v", level, err)
		}
	}
}
