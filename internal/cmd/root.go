// Package cmd implements the dittodocs command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// RuntimeFactory builds the components a command runs against. release is
// called once the command is done with them.
type RuntimeFactory func(ctx context.Context, cfg *config.Config) (rt *config.Runtime, release func(), err error)

// defaultRuntime initializes a fresh runtime and closes it on release.
func defaultRuntime(ctx context.Context, cfg *config.Config) (*config.Runtime, func(), error) {
	rt, err := config.InitializeRuntime(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rt, func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Warn("Failed to close runtime: %v", err)
		}
	}, nil
}

// app carries the state shared by every command.
type app struct {
	configPath string
	logLevel   string

	newRuntime RuntimeFactory
	cfg        *config.Config
}

// NewRootCmd creates and returns the root cobra command for the dittodocs CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultRuntime)
}

func newRootCmd(factory RuntimeFactory) *cobra.Command {
	a := &app{newRuntime: factory}

	rootCmd := &cobra.Command{
		Use:   "dittodocs",
		Short: "dittodocs - document trees on a remote file service",
		Long: `dittodocs stores documents as virtual file trees on a remote file service
(SFTP, S3, BadgerDB). Every file carries a JSON sidecar with its type and
timestamps; directory listings are synthesized from the remote.

Use subcommands to perform different operations:
  - init: Write a default configuration file
  - doc: Create, initialize and delete documents
  - read, write, rm: Operate on files of a document
  - meta: Inspect and update sidecar metadata
  - page: Read and write pages, compute page links
  - sweep: Delete orphaned sidecars
  - serve: Run the metrics endpoint and the background sweeper`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["config"] == "none" {
				return nil
			}
			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodocs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (DEBUG, INFO, WARN, ERROR)")

	groupDocuments := "documents"
	groupMaintenance := "maintenance"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupDocuments,
		Title: "Document Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupMaintenance,
		Title: "Maintenance Commands",
	})

	for _, c := range []*cobra.Command{
		newDocCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newRmCmd(a),
		newMetaCmd(a),
		newPageCmd(a),
	} {
		c.GroupID = groupDocuments
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		newInitCmd(),
		newSweepCmd(a),
		newServeCmd(a),
	} {
		c.GroupID = groupMaintenance
		rootCmd.AddCommand(c)
	}

	return rootCmd
}

// loadConfig loads the configuration and applies its logging settings.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return err
	}

	a.cfg = cfg
	return nil
}

// run executes fn against a runtime built from the loaded configuration.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, rt *config.Runtime) error) error {
	if a.cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, release, err := a.newRuntime(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer release()

	return fn(ctx, rt)
}
