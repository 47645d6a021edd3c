package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a commented configuration file with default values to
// the default location.
//
// Returns the path of the written file. Fails if the file exists and force
// is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented configuration file with default
// values to path, creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold remote credentials
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// field is one commented key of a generated mapping.
type field struct {
	key     string
	comment string
	value   any
}

// mapping builds a YAML mapping node preserving field order.
func mapping(fields ...field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key, HeadComment: f.comment}

		var value *yaml.Node
		switch v := f.value.(type) {
		case *yaml.Node:
			value = v
		case time.Duration:
			value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.String()}
		default:
			value = &yaml.Node{}
			if err := value.Encode(v); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", f.key, err)
			}
		}

		node.Content = append(node.Content, key, value)
	}

	return node, nil
}

// generateYAMLWithComments renders cfg as YAML with a comment on every
// section and setting.
func generateYAMLWithComments(cfg *Config) (string, error) {
	logging, err := mapping(
		field{"level", "Minimum level: DEBUG, INFO, WARN, ERROR", cfg.Logging.Level},
		field{"format", "Output format: text, json", cfg.Logging.Format},
		field{"output", "Destination: stdout, stderr, or a file path", cfg.Logging.Output},
	)
	if err != nil {
		return "", err
	}

	remote, err := mapping(
		field{"type", "Remote file service: sftp, s3, badger, memory", cfg.Remote.Type},
		field{"sftp", "SSH file transfer server (type: sftp)\nAuthenticate with password, private_key or private_key_path", cfg.Remote.SFTP},
		field{"s3", "S3 or compatible object store (type: s3)\nKeys: region, bucket, key_prefix, endpoint, access_key_id, secret_access_key, max_retries", cfg.Remote.S3},
		field{"badger", "Embedded BadgerDB database (type: badger)", cfg.Remote.Badger},
	)
	if err != nil {
		return "", err
	}

	rateLimit, err := mapping(
		field{"ops_per_second", "Sustained remote calls per second (0 = unlimited)", cfg.Connection.RateLimit.OpsPerSecond},
		field{"burst", "Burst size (0 = ops_per_second)", cfg.Connection.RateLimit.Burst},
	)
	if err != nil {
		return "", err
	}

	connection, err := mapping(
		field{"probe_interval", "Probe the shared session at most once per interval (0 = every use)", cfg.Connection.ProbeInterval},
		field{"dial_timeout", "Maximum time to open a session", cfg.Connection.DialTimeout},
		field{"rate_limit", "", rateLimit},
	)
	if err != nil {
		return "", err
	}

	store, err := mapping(
		field{"root", "Remote directory holding every document", cfg.Store.Root},
		field{"timeout", "Maximum duration of one store operation", cfg.Store.Timeout},
	)
	if err != nil {
		return "", err
	}

	documents, err := mapping(
		field{"default_title", "Title of the home page of new documents", cfg.Documents.DefaultTitle},
	)
	if err != nil {
		return "", err
	}

	gc, err := mapping(
		field{"enabled", "Sweep orphaned sidecars in the background (serve command)", cfg.GC.Enabled},
		field{"interval", "Time between two sweeps", cfg.GC.Interval},
		field{"dry_run", "Log orphans without deleting them", cfg.GC.DryRun},
		field{"documents", "Documents to sweep (empty = every document)", cfg.GC.Documents},
	)
	if err != nil {
		return "", err
	}

	metricsNode, err := mapping(
		field{"enabled", "Expose Prometheus metrics and /healthz over HTTP", cfg.Metrics.Enabled},
		field{"port", "Port of the metrics server", cfg.Metrics.Port},
	)
	if err != nil {
		return "", err
	}

	root, err := mapping(
		field{"logging", "Logging", logging},
		field{"remote", "Remote storage backend", remote},
		field{"connection", "Shared remote session", connection},
		field{"store", "Document store", store},
		field{"documents", "Document defaults", documents},
		field{"gc", "Orphaned sidecar sweeper", gc},
		field{"metrics", "Metrics", metricsNode},
	)
	if err != nil {
		return "", err
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "dittodocs Configuration File\nEnvironment variables override these values: DITTODOCS_<SECTION>_<KEY>\n(e.g. DITTODOCS_LOGGING_LEVEL=DEBUG)",
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.String(), nil
}
