package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ConversionResult is the outcome of one gpsbabel run.
type ConversionResult struct {
	JobID      string        `json:"jobId"`
	ExitCode   int32         `json:"exitCode"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Duration   time.Duration `json:"duration"`
	OutputSize *int64        `json:"outputSize,omitempty"`
}

// IsSuccess is decided by the exit code alone; gpsbabel writes to stderr
// on clean runs too.
func (r ConversionResult) IsSuccess() bool {
	return r.ExitCode == 0
}

// DurationSeconds returns the wall-clock run time in seconds.
func (r ConversionResult) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// StatusMessage returns the one-line outcome shown to users.
func (r ConversionResult) StatusMessage() string {
	if !r.IsSuccess() {
		return fmt.Sprintf("Conversion failed with exit code %d.", r.ExitCode)
	}
	if r.OutputSize != nil {
		return fmt.Sprintf("Conversion successful. Output file size: %s", humanize.Bytes(uint64(max(*r.OutputSize, 0))))
	}
	return "Conversion successful."
}

// ErrorMessage prefers stderr, then stdout, then a generic message.
// It is empty for successful runs.
func (r ConversionResult) ErrorMessage() string {
	if r.IsSuccess() {
		return ""
	}
	if r.Stderr != "" {
		return r.Stderr
	}
	if r.Stdout != "" {
		return r.Stdout
	}
	return fmt.Sprintf("Conversion failed with exit code %d", r.ExitCode)
}

// FullLog joins both streams into labelled sections.
func (r ConversionResult) FullLog() string {
	var b strings.Builder
	if r.Stdout != "" {
		b.WriteString("STDOUT:\n")
		b.WriteString(r.Stdout)
		b.WriteString("\n")
	}
	if r.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(r.Stderr)
	}
	if b.Len() == 0 {
		return "No output from gpsbabel"
	}
	return b.String()
}
