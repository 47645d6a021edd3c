package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/page"
	"github.com/spf13/cobra"
)

func newPageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Read and write pages, compute page links",
		Long: `Page commands accept short page addresses: "guide" is guide.page and a
trailing slash ("docs/") is the index page of that directory.`,
	}

	cmd.AddCommand(newPageReadCmd(a))
	cmd.AddCommand(newPageWriteCmd(a))
	cmd.AddCommand(newPageHrefCmd())

	return cmd
}

func newPageReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read DOCUMENT [PATH]",
		Short: "Read a page",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Documents.ReadPage(ctx, addr)
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	}
}

func newPageWriteCmd(a *app) *cobra.Command {
	var (
		title   string
		content string
		path    string
	)

	cmd := &cobra.Command{
		Use:   "write DOCUMENT PATH",
		Short: "Write a page",
		Long: `Write stores a page. The editor content is read from --content or, as a
JSON array, from --file ("-" for stdin); it defaults to an empty page.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			raw, err := readPayload(cmd, content, path)
			if err != nil {
				return err
			}
			if raw == nil {
				raw = []byte(`[]`)
			}
			if !json.Valid(raw) {
				return fmt.Errorf("page content is not valid JSON")
			}

			p := file.Page{Title: title, Content: json.RawMessage(raw)}
			return a.run(cmd, func(ctx context.Context, rt *config.Runtime) error {
				f, err := rt.Documents.WritePage(ctx, addr, p)
				if err != nil {
					return err
				}
				return printJSON(cmd, f)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Page title (required)")
	cmd.Flags().StringVar(&content, "content", "", "Editor content as JSON")
	cmd.Flags().StringVarP(&path, "file", "f", "", "Read the editor content from a file (- for stdin)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newPageHrefCmd() *cobra.Command {
	var edit bool

	cmd := &cobra.Command{
		Use:         "href DOCUMENT [PATH]",
		Short:       "Print the browser link of a page",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: map[string]string{"config": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArgs(args)
			if err != nil {
				return err
			}
			if !page.IsPage(addr) {
				return fmt.Errorf("%s is not a page address", addr)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), page.Href(addr, edit))
			return err
		},
	}

	cmd.Flags().BoolVar(&edit, "edit", false, "Link to the page editor")

	return cmd
}
