package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gpsconv/internal/bootstrap"
	"gpsconv/internal/convert"
	"gpsconv/internal/locator"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0   // Conversion or command succeeded
	ExitConversionFailed = 1   // gpsbabel ran and failed, or diagnostics found failures
	ExitError            = 2   // Usage, configuration or input errors
	ExitBinaryNotFound   = 3   // No usable gpsbabel
	ExitCancelled        = 130 // Interrupted by the user
)

// UnhealthyError means diagnostics completed but reported failures.
type UnhealthyError struct {
	Failures int
}

func (e *UnhealthyError) Error() string {
	return fmt.Sprintf("%d diagnostic check(s) failed", e.Failures)
}

func main() {
	err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpsconv:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	var unhealthy *UnhealthyError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, convert.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, locator.ErrBinaryNotFound), errors.Is(err, bootstrap.ErrNoPackageManager):
		return ExitBinaryNotFound
	case errors.Is(err, convert.ErrConversionFailed), errors.As(err, &unhealthy):
		return ExitConversionFailed
	default:
		return ExitError
	}
}
