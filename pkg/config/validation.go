package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittodocs/pkg/document"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The selected backend section is only a map in Config: decode it and
	// validate the backend's own config type.
	if err := validateRemote(&cfg.Remote); err != nil {
		return err
	}

	// Swept documents must be addressable
	for i, id := range cfg.GC.Documents {
		if err := document.ValidateID(id); err != nil {
			return fmt.Errorf("gc.documents[%d]: %w", i, err)
		}
	}

	if cfg.Connection.RateLimit.Burst > 0 && cfg.Connection.RateLimit.OpsPerSecond == 0 {
		return fmt.Errorf("connection.rate_limit: burst is set but ops_per_second is 0 (unlimited)")
	}

	return nil
}

// validateRemote validates the section of the selected remote type.
func validateRemote(cfg *RemoteConfig) error {
	var section any

	switch cfg.Type {
	case "sftp":
		sftpCfg, err := decodeSFTPConfig(cfg.SFTP)
		if err != nil {
			return err
		}
		section = &sftpCfg
	case "s3":
		s3Cfg, err := decodeS3Config(cfg.S3)
		if err != nil {
			return err
		}
		section = &s3Cfg
	case "badger":
		badgerCfg, err := decodeBadgerConfig(cfg.Badger)
		if err != nil {
			return err
		}
		if badgerCfg.Path == "" && !badgerCfg.InMemory {
			return fmt.Errorf("remote.badger: path is required unless in_memory is set")
		}
		return nil
	default:
		return nil
	}

	if err := validate.Struct(section); err != nil {
		return fmt.Errorf("remote.%s: %w", cfg.Type, formatValidationError(err))
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
