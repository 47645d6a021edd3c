package cmd

import (
	"context"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read DOCUMENT [PATH]",
		Short: "Read a file or list a directory",
		Long: `Read prints the metadata and payload of a file as JSON.

Directories list their visible children: hidden entries and sidecars are
omitted, extensionless names come first. Hidden, missing or unreachable
files print null.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Content.Read(ctx, addr)
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	}
}

func newWriteCmd(a *app) *cobra.Command {
	var (
		typeName string
		data     string
		path     string
	)

	cmd := &cobra.Command{
		Use:   "write DOCUMENT PATH",
		Short: "Write a file and its sidecar",
		Long: `Write stores a payload and records its metadata.

The type of an existing file cannot change. Directories are created with
their parents and take no payload; json files and pages read it from
--data or --file ("-" for stdin).`,
		Example: `  dittodocs write doc1 settings.json --type json --data '{"theme":"dark"}'
  dittodocs write doc1 guides/ --type directory
  dittodocs write doc1 intro.page --type page --file intro.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			t, err := file.ParseType(typeName)
			if err != nil {
				return err
			}
			raw, err := readPayload(cmd, data, path)
			if err != nil {
				return err
			}
			payload, err := payloadOf(t, raw)
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Content.Write(ctx, addr, t, payload)
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "File type: json, directory, page (required)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Payload as a JSON string")
	cmd.Flags().StringVarP(&path, "file", "f", "", "Read the payload from a file (- for stdin)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm DOCUMENT PATH",
		Short: "Remove a file, or a directory and everything below it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				status, err := rt.Content.Remove(ctx, addr)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{
					"address": addr.String(),
					"status":  status.String(),
				})
			})
		},
	}
}
