package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gpsconv/internal/domain"
	"gpsconv/internal/formats"
)

type formatsOptions struct {
	read   bool
	write  bool
	asJSON bool
}

func newFormatsCommand(root *rootOptions) *cobra.Command {
	opts := &formatsOptions{}

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the formats gpsbabel can read and write",
		Long: `List the formats reported by gpsbabel.

When gpsbabel cannot be found or its listing fails, a small built-in list of
common formats is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			all, source := root.app.Formats(ctx)

			var list []domain.Format
			switch {
			case opts.read && !opts.write:
				list = root.app.ReadFormats(ctx)
			case opts.write && !opts.read:
				list = root.app.WriteFormats(ctx)
			default:
				list = all
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if err := renderFormatsTable(cmd, list); err != nil {
				return err
			}
			if source == formats.SourceBuiltin {
				fmt.Fprintln(cmd.ErrOrStderr(), "Note: gpsbabel did not provide a format list; showing built-in formats.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.read, "read", false, "Only formats that can be read")
	cmd.Flags().BoolVar(&opts.write, "write", false, "Only formats that can be written")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

// renderFormatsTable prints one row per format.
func renderFormatsTable(cmd *cobra.Command, list []domain.Format) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("ID", "Read", "Write", "Extensions", "Description")

	for _, f := range list {
		if err := table.Append(
			f.ID,
			yesNo(f.SupportsRead),
			yesNo(f.SupportsWrite),
			strings.Join(f.Extensions, " "),
			f.Label(),
		); err != nil {
			return err
		}
	}

	return table.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
