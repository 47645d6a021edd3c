package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint and the background sweeper",
		Long: `Serve keeps the shared remote session open, exposes /metrics and /healthz
when metrics are enabled and sweeps orphaned sidecars every gc.interval when
gc is enabled. It stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				return serve(ctx, rt, shutdownTimeout)
			})
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	return cmd
}

func serve(ctx context.Context, rt *config.Runtime, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Open the session up front so a misconfigured remote fails fast.
	if err := rt.Health(ctx); err != nil {
		logger.Warn("Remote not reachable yet: %v", err)
	}

	rt.Sweeper.Start()

	serverDone := make(chan error, 1)
	if rt.Metrics.Server != nil {
		go func() {
			serverDone <- rt.Metrics.Server.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("dittodocs is running (remote: %s). Press Ctrl+C to stop.", rt.Config.Remote.Type)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil {
			logger.Error("Metrics server error: %v", err)
			runErr = err
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := rt.Sweeper.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop sweeper: %w", err)
	}
	logger.Info("Stopped gracefully")

	return runErr
}
