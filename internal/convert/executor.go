// Package convert runs one gpsbabel conversion as a child process.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gpsconv/internal/domain"
)

const (
	stagingPrefix = "gpsconv-"
	// waitDelay bounds how long Wait blocks on pipes held open by
	// grandchildren after gpsbabel itself has exited.
	waitDelay = 2 * time.Second
)

// Executor runs at most one gpsbabel process at a time. Output is written
// to a staging file first and only moved to the destination after a clean
// exit, so a failed or cancelled run never touches the destination.
type Executor struct {
	logger  *slog.Logger
	tempDir string

	stat     func(name string) (os.FileInfo, error)
	remove   func(name string) error
	rename   func(oldpath, newpath string) error
	openFile func(name string) (io.ReadCloser, error)
	now      func() time.Time

	mu              sync.Mutex
	busy            bool
	cmd             *exec.Cmd
	cancelRequested bool
}

// NewExecutor constructs an executor that stages output in the OS temp dir.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:   logger,
		tempDir:  os.TempDir(),
		stat:     os.Stat,
		remove:   os.Remove,
		rename:   os.Rename,
		openFile: func(name string) (io.ReadCloser, error) { return os.Open(name) },
		now:      time.Now,
	}
}

// Cancel asks the running gpsbabel process to terminate. It returns false
// when nothing is running. Repeated calls are harmless.
func (e *Executor) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.busy {
		return false
	}
	e.cancelRequested = true
	if e.cmd == nil || e.cmd.Process == nil {
		// Not started yet; Run signals right after Start.
		return true
	}
	if err := terminate(e.cmd); err != nil {
		e.logger.Debug("terminate gpsbabel", "pid", e.cmd.Process.Pid, "error", err)
	}
	return true
}

// Run converts job with the gpsbabel binary at binaryPath. Cancelling ctx
// has the same effect as calling Cancel.
//
// On success the result carries the promoted file's size. A non-zero exit
// yields *ConversionFailedError alongside the populated result; a
// cancelled run yields ErrCancelled.
func (e *Executor) Run(ctx context.Context, binaryPath string, job domain.JobSpec) (domain.ConversionResult, error) {
	if err := e.claim(); err != nil {
		return domain.ConversionResult{}, err
	}
	defer e.release()

	if err := e.checkJob(job); err != nil {
		return domain.ConversionResult{}, err
	}
	if ctx.Err() != nil {
		return domain.ConversionResult{JobID: job.ID}, ErrCancelled
	}

	staging := e.stagingPath(job)
	defer func() {
		if err := e.remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("remove staging file", "path", staging, "error", err)
		}
	}()

	args := BuildArgs(job, staging)
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	started := e.now()
	if err := e.start(cmd); err != nil {
		return domain.ConversionResult{JobID: job.ID, ExitCode: -1}, &ConversionFailedError{
			ExitCode: -1,
			Message:  fmt.Sprintf("failed to start gpsbabel: %v", err),
			Err:      err,
		}
	}
	e.logger.Debug("gpsbabel started", "job", job.ID, "pid", cmd.Process.Pid, "args", args)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.Cancel()
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	elapsed := e.now().Sub(started)

	e.mu.Lock()
	e.cmd = nil
	cancelled := e.cancelRequested
	e.mu.Unlock()

	code, signaled := exitStatus(cmd.ProcessState)
	result := domain.ConversionResult{
		JobID:    job.ID,
		ExitCode: int32(code),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	e.logger.Debug("gpsbabel exited",
		"job", job.ID,
		"exit_code", code,
		"signaled", signaled,
		"duration", elapsed,
	)

	if signaled || (cancelled && code != 0) {
		return result, ErrCancelled
	}
	if cmd.ProcessState == nil {
		return result, &ConversionFailedError{
			ExitCode: -1,
			Message:  fmt.Sprintf("waiting for gpsbabel failed: %v", waitErr),
			Err:      waitErr,
		}
	}
	if code != 0 {
		message := strings.TrimSpace(result.Stderr)
		if message == "" {
			message = strings.TrimSpace(result.Stdout)
		}
		return result, &ConversionFailedError{
			ExitCode: result.ExitCode,
			Message:  message,
			Err:      waitErr,
		}
	}

	size, err := e.promote(staging, job.OutputPath)
	if err != nil {
		return result, &ConversionFailedError{
			ExitCode: -1,
			Message:  fmt.Sprintf("Failed to copy output file to destination: %v", err),
			Err:      err,
		}
	}
	result.OutputSize = &size
	return result, nil
}

// BuildArgs assembles the gpsbabel command line. Order matters: the input
// format and file come first, filters sit between input and output.
func BuildArgs(job domain.JobSpec, stagingPath string) []string {
	args := make([]string, 0, 8+2*len(job.Filters))
	if id := job.InputFormatID(); id != "" {
		args = append(args, "-i", id)
	}
	args = append(args, "-f", job.InputPath)
	args = append(args, domain.FilterArgs(job.Filters)...)
	args = append(args, "-o", job.OutputFormat.ID, "-F", stagingPath)
	return args
}

// claim marks the executor busy or reports ErrBusy.
func (e *Executor) claim() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.busy = true
	e.cancelRequested = false
	return nil
}

// release clears the busy flag once Run returns.
func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	e.cmd = nil
}

// start launches cmd and publishes it for Cancel. A cancel that arrived
// before the process existed is delivered immediately.
func (e *Executor) start(cmd *exec.Cmd) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := cmd.Start(); err != nil {
		return err
	}
	e.cmd = cmd
	if e.cancelRequested {
		if err := terminate(cmd); err != nil {
			e.logger.Debug("terminate gpsbabel", "pid", cmd.Process.Pid, "error", err)
		}
	}
	return nil
}

// checkJob validates paths and format before any process is spawned.
func (e *Executor) checkJob(job domain.JobSpec) error {
	if strings.TrimSpace(job.InputPath) == "" {
		return &InvalidInputError{Path: job.InputPath, Err: os.ErrNotExist}
	}
	info, err := e.stat(job.InputPath)
	if err != nil {
		return &InvalidInputError{Path: job.InputPath, Err: err}
	}
	if info.IsDir() {
		return &InvalidInputError{Path: job.InputPath, Err: fmt.Errorf("%s is a directory", job.InputPath)}
	}

	if strings.TrimSpace(job.OutputPath) == "" {
		return &InvalidOutputPathError{Path: job.OutputPath, Err: os.ErrNotExist}
	}
	dir := filepath.Dir(job.OutputPath)
	dirInfo, err := e.stat(dir)
	if err != nil {
		return &InvalidOutputPathError{Path: job.OutputPath, Err: err}
	}
	if !dirInfo.IsDir() {
		return &InvalidOutputPathError{Path: job.OutputPath, Err: fmt.Errorf("%s is not a directory", dir)}
	}
	if info, err := e.stat(job.OutputPath); err == nil && info.IsDir() {
		return &InvalidOutputPathError{Path: job.OutputPath, Err: fmt.Errorf("%s is a directory", job.OutputPath)}
	}

	if job.OutputFormat.ID == "" || job.OutputFormat.IsAutoDetect() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, job.OutputFormat.ID)
	}
	return nil
}

// stagingPath picks a unique temp file carrying the destination extension.
func (e *Executor) stagingPath(job domain.JobSpec) string {
	ext := filepath.Ext(job.OutputPath)
	if ext == "" {
		ext = job.OutputFormat.PrimaryExtension()
	}
	return filepath.Join(e.tempDir, stagingPrefix+uuid.NewString()+ext)
}

// promote moves the staging file onto dest and returns the final size.
// Rename replaces dest atomically; when staging and dest live on different
// filesystems the data is copied next to dest and renamed into place.
func (e *Executor) promote(staging, dest string) (int64, error) {
	if _, err := e.stat(staging); err != nil {
		return 0, fmt.Errorf("gpsbabel produced no output: %w", err)
	}

	if err := e.rename(staging, dest); err != nil {
		e.logger.Debug("rename staging file failed, copying", "error", err)
		if err := e.copyInto(staging, dest); err != nil {
			return 0, err
		}
	}

	info, err := e.stat(dest)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// copyInto copies src beside dest, syncs it, then swaps it into place.
func (e *Executor) copyInto(src, dest string) error {
	in, err := e.openFile(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+stagingPrefix+"*.partial")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = e.remove(tmpName) }

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := e.rename(tmpName, dest); err != nil {
		// Some platforms refuse to rename over an existing file.
		if rmErr := e.remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			cleanup()
			return err
		}
		if err := e.rename(tmpName, dest); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}

// NewExecutorForTests creates an executor with an injectable staging dir
// and rename function.
func NewExecutorForTests(tempDir string, rename func(oldpath, newpath string) error) *Executor {
	e := NewExecutor(nil)
	if tempDir != "" {
		e.tempDir = tempDir
	}
	if rename != nil {
		e.rename = rename
	}
	return e
}
