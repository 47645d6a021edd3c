package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/document"
	"github.com/marmos91/dittodocs/pkg/gc"
	"github.com/marmos91/dittodocs/pkg/store/content"
	"github.com/marmos91/dittodocs/pkg/store/metadata"
)

// Runtime holds every component built from a configuration. The pool is
// shared by all of them.
type Runtime struct {
	Config    *Config
	Pool      *connection.Pool
	Metadata  *metadata.Store
	Content   *content.Store
	Documents *document.Service
	Sweeper   *gc.Sweeper
	Metrics   *MetricsResult
}

// InitializeRuntime creates a fully wired Runtime from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Initializes metrics (registry, HTTP server, hooks)
//  2. Creates the session pool over the configured remote
//  3. Creates the metadata and content stores on top of the pool
//  4. Creates the document service and the sidecar sweeper
//
// No connection is opened: the pool dials on first use.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	rt, err := config.InitializeRuntime(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize: %v", err)
//	}
//	defer rt.Close()
func InitializeRuntime(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("configuration is nil")
	}
	logger.Debug("Initializing runtime from configuration (remote: %s)", cfg.Remote.Type)

	rt := &Runtime{Config: cfg}

	// Step 1: Metrics. The health check resolves the pool lazily since it
	// does not exist yet.
	rt.Metrics = InitializeMetrics(cfg, rt.Health)

	// Step 2: Session pool
	pool, err := CreatePool(ctx, cfg, rt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create session pool: %w", err)
	}
	rt.Pool = pool

	// Step 3: Stores
	rt.Metadata = metadata.New(pool, metadata.Config{
		Root:    cfg.Store.Root,
		Timeout: cfg.Store.Timeout,
	})
	rt.Content = content.New(pool, rt.Metadata, content.Config{
		Timeout: cfg.Store.Timeout,
	})

	// Step 4: Services
	rt.Documents = document.NewService(rt.Content, document.Config{
		DefaultTitle: cfg.Documents.DefaultTitle,
	})
	rt.Sweeper = gc.NewSweeper(pool, cfg.Store.Root, gc.Config{
		Enabled:   cfg.GC.Enabled,
		Interval:  cfg.GC.Interval,
		Documents: cfg.GC.Documents,
		Timeout:   cfg.Store.Timeout,
		DryRun:    cfg.GC.DryRun,
		Metrics:   rt.Metrics.Sweep,
	})

	logger.Debug("Runtime initialized: root=%q timeout=%s", cfg.Store.Root, cfg.Store.Timeout)
	return rt, nil
}

// Health acquires the shared session, reconnecting if needed.
func (rt *Runtime) Health(ctx context.Context) error {
	if rt.Pool == nil {
		return errors.New("session pool not initialized")
	}
	_, err := rt.Pool.Acquire(ctx)
	return err
}

// Close stops the sweeper and the metrics server, then closes the pool.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error

	if rt.Sweeper != nil {
		if err := rt.Sweeper.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.Metrics != nil && rt.Metrics.Server != nil {
		if err := rt.Metrics.Server.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.Pool != nil {
		if err := rt.Pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
