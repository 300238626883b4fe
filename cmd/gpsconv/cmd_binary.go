package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBinaryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binary",
		Short: "Show or override which gpsbabel executable is used",
		Long: `Show or override which gpsbabel executable is used.

Discovery checks, in order: a gpsbabel next to gpsconv, the Homebrew
locations, the saved custom path, then PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.app.Locator.Locate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <path>",
		Short: "Save a custom gpsbabel path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.app.SetCustomBinaryPath(args[0]); err != nil {
				return err
			}
			status := root.app.BinaryStatus(cmd.Context())
			if !status.Available {
				fmt.Fprintln(cmd.ErrOrStderr(), "Saved, but no usable gpsbabel was found.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using %s\n", status.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the saved custom gpsbabel path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.app.SetCustomBinaryPath(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Custom gpsbabel path cleared.")
			return nil
		},
	})

	return cmd
}
