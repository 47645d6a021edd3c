package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/spf13/cobra"
)

func newMetaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Inspect and update sidecar metadata",
	}

	cmd.AddCommand(newMetaGetCmd(a))
	cmd.AddCommand(newMetaSetCmd(a))

	return cmd
}

func newMetaGetCmd(a *app) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get DOCUMENT [PATH]",
		Short: "Print the metadata of a file",
		Long: `Get prints the sidecar record of a file. Files without a sidecar get a
synthesized record when their type follows from the address.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				if !showSource {
					m, err := rt.Metadata.GetMeta(ctx, addr)
					if err != nil {
						return err
					}
					return printJSON(cmd, m)
				}

				l, err := rt.Metadata.Lookup(ctx, addr)
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					Meta   *file.Meta `json:"meta"`
					Source string     `json:"source"`
				}{l.Meta, l.Source.String()})
			})
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Also print whether the record was read or synthesized")

	return cmd
}

func newMetaSetCmd(a *app) *cobra.Command {
	var (
		typeName string
		extra    string
	)

	cmd := &cobra.Command{
		Use:   "set DOCUMENT PATH",
		Short: "Create or update the metadata of a file",
		Long: `Set writes the sidecar record of a file. The type of an existing record
cannot change; created is preserved and updated refreshed. --extra replaces
the extra properties.`,
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

			m := file.Meta{Address: addr, Type: t}
			if extra != "" {
				if !json.Valid([]byte(extra)) {
					return fmt.Errorf("--extra is not valid JSON")
				}
				m.Extra = json.RawMessage(extra)
			}

			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				saved, err := rt.Metadata.SetMeta(ctx, addr, m)
				if err != nil {
					return err
				}
				return printJSON(cmd, saved)
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "File type: json, directory, page (required)")
	cmd.Flags().StringVar(&extra, "extra", "", "Extra properties as a JSON value")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
