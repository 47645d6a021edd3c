package cmd

import (
	"context"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/document"
	"github.com/spf13/cobra"
)

func newDocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create, initialize and delete documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create a document with a default home page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				id, err := rt.Documents.Create(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"id": id})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init DOCUMENT",
		Short: "Write the default home page of an existing document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := document.ValidateID(args[0]); err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Documents.Initialize(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mkdir DOCUMENT PATH",
		Short: "Create a directory, parents included",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Documents.Mkdir(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete DOCUMENT",
		Short: "Delete a document and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				status, err := rt.Documents.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"id": args[0], "status": status.String()})
			})
		},
	})

	return cmd
}
