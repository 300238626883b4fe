package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gpsconv/internal/domain"
)

func newDoctorCommand(root *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that gpsbabel and the preference store are usable",
		Long: `Run diagnostics for the gpsbabel binary and the preference file.

With --watch the report is printed again whenever the preference file
changes, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchDoctor(cmd.Context(), cmd, root)
			}

			report, err := root.app.Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return reportError(report)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run when the preference file changes")
	return cmd
}

// watchDoctor re-runs diagnostics on every preference change.
func watchDoctor(ctx context.Context, cmd *cobra.Command, root *rootOptions) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	changed := make(chan struct{}, 1)
	err := root.app.Watch(ctx, func(domain.Settings) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	for {
		report, err := root.app.Diagnostics(ctx)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}
}

func printReport(w io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(item.Status)), item.Name, item.Message)
		if item.Hint != "" {
			fmt.Fprintf(w, "       %s\n", item.Hint)
		}
	}
}

func reportError(report domain.DiagnosticReport) error {
	if !report.HasFailures {
		return nil
	}
	failures := 0
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			failures++
		}
	}
	return &UnhealthyError{Failures: failures}
}
