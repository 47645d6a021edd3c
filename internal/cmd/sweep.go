package cmd

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/document"
	"github.com/marmos91/dittodocs/pkg/gc"
	"github.com/spf13/cobra"
)

func newSweepCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep [DOCUMENT...]",
		Short: "Delete orphaned sidecars",
		Long: `Sweep walks document trees and deletes sidecars whose file is gone, as
left behind by an interrupted remove.

Without arguments it sweeps the documents listed in gc.documents, or every
document when that list is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := document.ValidateID(id); err != nil {
					return err
				}
			}

			docs := a.cfg.GC.Documents
			if len(args) > 0 {
				docs = args
			}

			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				sweeper := gc.NewSweeper(rt.Pool, a.cfg.Store.Root, gc.Config{
					Documents: docs,
					Timeout:   a.cfg.Store.Timeout,
					DryRun:    dryRun || a.cfg.GC.DryRun,
					Metrics:   rt.Metrics.Sweep,
				})

				report, err := sweeper.RunNow(ctx)
				if report != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", report.Summary())
					for _, orphan := range report.Orphans {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), orphan)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List orphans without deleting them")

	return cmd
}
