package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show gpsconv and gpsbabel versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gpsconv %s\n", version)

			status := root.app.BinaryStatus(cmd.Context())
			if !status.Available {
				fmt.Fprintln(out, "gpsbabel: not found")
				return nil
			}
			v := status.Version
			if v == "" {
				v = "unknown version"
			}
			fmt.Fprintf(out, "gpsbabel: %s (%s)\n", v, status.Path)
			return nil
		},
	}
}
