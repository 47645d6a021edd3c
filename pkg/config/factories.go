package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/internal/ratelimiter"
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/transport"
	transportBadger "github.com/marmos91/dittodocs/pkg/transport/badger"
	"github.com/marmos91/dittodocs/pkg/transport/memory"
	transportS3 "github.com/marmos91/dittodocs/pkg/transport/s3"
	transportSFTP "github.com/marmos91/dittodocs/pkg/transport/sftp"
	"github.com/mitchellh/mapstructure"
)

// S3RemoteConfig contains the S3 backend settings (remote.s3).
type S3RemoteConfig struct {
	Region          string `mapstructure:"region" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"gte=0"`
}

// decodeOptions decodes a backend section into out.
//
// Durations may be given as strings ("10s") and scalars as strings
// (environment variables).
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// decodeSFTPConfig decodes remote.sftp.
func decodeSFTPConfig(options map[string]any) (transportSFTP.Config, error) {
	var cfg transportSFTP.Config
	if err := decodeOptions(options, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode sftp remote config: %w", err)
	}
	return cfg, nil
}

// decodeS3Config decodes remote.s3.
func decodeS3Config(options map[string]any) (S3RemoteConfig, error) {
	var cfg S3RemoteConfig
	if err := decodeOptions(options, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode S3 remote config: %w", err)
	}
	return cfg, nil
}

// decodeBadgerConfig decodes remote.badger.
func decodeBadgerConfig(options map[string]any) (transportBadger.Config, error) {
	var cfg transportBadger.Config
	if err := decodeOptions(options, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode badger remote config: %w", err)
	}
	return cfg, nil
}

// CreateDialer creates the session dialer of the configured remote.
//
// This factory function uses the Type field to determine which transport
// implementation to create, then decodes the type-specific configuration
// from the corresponding map. Every session it dials is wrapped with
// transport.Instrument using opts.
//
// Supported types:
//   - "sftp": pkg/transport/sftp (SSH file transfer server)
//   - "s3": pkg/transport/s3 (Amazon S3 or compatible storage)
//   - "badger": pkg/transport/badger (embedded BadgerDB)
//   - "memory": pkg/transport/memory (in-process, ephemeral)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Remote configuration
//   - opts: Metrics and rate limiting applied to every session
//
// Returns:
//   - connection.Dialer: Dialer for the session pool
//   - error: Configuration or initialization error
func CreateDialer(ctx context.Context, cfg *RemoteConfig, opts transport.InstrumentOptions) (connection.Dialer, error) {
	var dial connection.DialerFunc
	var err error

	switch cfg.Type {
	case "sftp":
		dial, err = createSFTPDialer(cfg.SFTP)
	case "s3":
		dial, err = createS3Dialer(ctx, cfg.S3)
	case "badger":
		dial, err = createBadgerDialer(cfg.Badger)
	case "memory":
		dial = createMemoryDialer()
	default:
		return nil, fmt.Errorf("unknown remote type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return connection.DialerFunc(func(ctx context.Context) (transport.Transport, error) {
		t, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return transport.Instrument(t, opts), nil
	}), nil
}

// createSFTPDialer creates a dialer opening one SSH connection per session.
func createSFTPDialer(options map[string]any) (connection.DialerFunc, error) {
	sftpCfg, err := decodeSFTPConfig(options)
	if err != nil {
		return nil, err
	}

	if sftpCfg.Host == "" {
		return nil, fmt.Errorf("sftp remote: host is required")
	}
	if sftpCfg.User == "" {
		return nil, fmt.Errorf("sftp remote: user is required")
	}

	logger.Info("SFTP remote configured: host=%s, port=%d, user=%s, base=%q",
		sftpCfg.Host, sftpCfg.Port, sftpCfg.User, sftpCfg.BasePath)

	return func(ctx context.Context) (transport.Transport, error) {
		t, err := transportSFTP.Dial(ctx, sftpCfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}, nil
}

// createS3Dialer creates a dialer over one shared S3 client. Each dial
// checks bucket access.
func createS3Dialer(ctx context.Context, options map[string]any) (connection.DialerFunc, error) {
	s3Cfg, err := decodeS3Config(options)
	if err != nil {
		return nil, err
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 remote: bucket is required")
	}
	if s3Cfg.Region == "" {
		return nil, fmt.Errorf("S3 remote: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(s3Cfg.Region))

	// Set credentials if provided, otherwise use default credential chain
	if s3Cfg.AccessKeyID != "" && s3Cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			s3Cfg.AccessKeyID,
			s3Cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts (AWS default is 3)
	maxRetries := s3Cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if s3Cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 remote configured: bucket=%s, region=%s, prefix=%s",
		s3Cfg.Bucket, s3Cfg.Region, s3Cfg.KeyPrefix)

	// ========================================================================
	// Step 3: Dial S3 Transports
	// ========================================================================

	return func(ctx context.Context) (transport.Transport, error) {
		t, err := transportS3.New(ctx, transportS3.S3TransportConfig{
			Client:    client,
			Bucket:    s3Cfg.Bucket,
			KeyPrefix: s3Cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}, nil
}

// createBadgerDialer creates a dialer opening the BadgerDB database. The
// pool closes the previous session before dialing, which releases the
// directory lock.
func createBadgerDialer(options map[string]any) (connection.DialerFunc, error) {
	badgerCfg, err := decodeBadgerConfig(options)
	if err != nil {
		return nil, err
	}

	if badgerCfg.Path == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger remote: path is required")
	}

	logger.Info("BadgerDB remote configured: path=%s, in_memory=%v", badgerCfg.Path, badgerCfg.InMemory)

	return func(ctx context.Context) (transport.Transport, error) {
		t, err := transportBadger.Open(ctx, badgerCfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}, nil
}

// createMemoryDialer creates a dialer over one in-process tree shared by
// every session.
func createMemoryDialer() connection.DialerFunc {
	logger.Warn("Memory remote configured: documents are lost on exit")

	remote := memory.New()
	return func(ctx context.Context) (transport.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return remote.Reopen(), nil
	}
}

// CreatePool creates the session pool of the configured remote.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Complete configuration
//   - m: Metrics hooks (see InitializeMetrics)
func CreatePool(ctx context.Context, cfg *Config, m *MetricsResult) (*connection.Pool, error) {
	limiter := ratelimiter.New(cfg.Connection.RateLimit.OpsPerSecond, cfg.Connection.RateLimit.Burst)
	if !limiter.Unlimited() {
		logger.Info("Remote rate limit: %d ops/s (burst %d)",
			cfg.Connection.RateLimit.OpsPerSecond, cfg.Connection.RateLimit.Burst)
	}

	dialer, err := CreateDialer(ctx, &cfg.Remote, transport.InstrumentOptions{
		Metrics: m.Transport,
		Limiter: limiter,
	})
	if err != nil {
		return nil, err
	}

	return connection.NewPool(dialer, connection.Config{
		ProbeInterval: cfg.Connection.ProbeInterval,
		DialTimeout:   cfg.Connection.DialTimeout,
		Metrics:       m.Connection,
	}), nil
}
