package convert

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrInvalidInput means the input file is missing or unreadable.
	ErrInvalidInput = errors.New("invalid input file")
	// ErrInvalidOutputPath means the destination directory does not exist.
	ErrInvalidOutputPath = errors.New("invalid output path")
	// ErrInvalidFormat means the job names no usable output format.
	ErrInvalidFormat = errors.New("invalid output format")
	// ErrConversionFailed covers non-zero gpsbabel exits and promotion failures.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrCancelled means the run was stopped by a cancellation request.
	ErrCancelled = errors.New("conversion was cancelled")
	// ErrBusy is returned when Run is called while another run is in flight.
	ErrBusy = errors.New("a conversion is already running")
)

// InvalidInputError reports an input file that cannot be used.
type InvalidInputError struct {
	Path string
	Err  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("Cannot read input file: %s", filepath.Base(e.Path))
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func (e *InvalidInputError) Unwrap() error { return e.Err }

// InvalidOutputPathError reports a destination whose directory is unusable.
type InvalidOutputPathError struct {
	Path string
	Err  error
}

func (e *InvalidOutputPathError) Error() string {
	return fmt.Sprintf("Cannot write to output location: %s", e.Path)
}

func (e *InvalidOutputPathError) Is(target error) bool { return target == ErrInvalidOutputPath }

func (e *InvalidOutputPathError) Unwrap() error { return e.Err }

// ConversionFailedError carries the gpsbabel exit code and diagnostic text.
// ExitCode is -1 when gpsbabel could not be started or the output could
// not be promoted to its destination.
type ConversionFailedError struct {
	ExitCode int32
	Message  string
	Err      error
}

func (e *ConversionFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Conversion failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("Conversion failed with exit code %d: %s", e.ExitCode, e.Message)
}

func (e *ConversionFailedError) Is(target error) bool { return target == ErrConversionFailed }

func (e *ConversionFailedError) Unwrap() error { return e.Err }
