package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install gpsbabel with the system package manager",
		Long: `Install gpsbabel with the first available package manager.

macOS uses Homebrew. Linux tries apt-get, dnf, pacman and zypper (through
pkexec or sudo when needed), then Homebrew. Windows tries choco, then scoop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			path, err := root.app.InstallConverter(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gpsbabel ready at %s\n", path)
			return nil
		},
	}
}
