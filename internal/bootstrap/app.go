// Package bootstrap wires configuration, discovery, the format catalog and
// the executor into the App that runs conversion jobs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gpsconv/internal/config"
	"gpsconv/internal/convert"
	"gpsconv/internal/diagnostics"
	"gpsconv/internal/domain"
	"gpsconv/internal/formats"
	"gpsconv/internal/jobs"
	"gpsconv/internal/locator"
)

// ErrUnsupportedFormat is returned when a job names a format gpsbabel
// cannot read or write in the requested direction.
var ErrUnsupportedFormat = errors.New("unsupported format")

// App wires configuration, jobs, discovery and the executor.
type App struct {
	Config   config.Config
	Store    config.Store
	Jobs     *jobs.Manager
	Locator  binaryLocator
	Catalog  formatCatalog
	Executor conversionRunner

	checker   *diagnostics.Checker
	installer *installer
	logger    *slog.Logger

	mu          sync.Mutex
	activeJobID string
	cancel      context.CancelFunc
	done        chan struct{}
	log         *jobs.Log
	events      *jobs.EventBus
}

// binaryLocator isolates converter discovery behind an interface.
type binaryLocator interface {
	Locate(ctx context.Context) (string, error)
	Version(ctx context.Context) (string, error)
	SetCustomPath(path string) error
	Reset()
}

// formatCatalog isolates the cached format list behind an interface.
type formatCatalog interface {
	All(ctx context.Context) ([]domain.Format, formats.Source)
	ReadFormats(ctx context.Context) []domain.Format
	WriteFormats(ctx context.Context) []domain.Format
	Lookup(ctx context.Context, id string) (domain.Format, bool)
	Detect(ctx context.Context, path string) (domain.Format, bool)
	Invalidate()
}

// conversionRunner isolates the gpsbabel process behind an interface.
type conversionRunner interface {
	Run(ctx context.Context, binaryPath string, job domain.JobSpec) (domain.ConversionResult, error)
	Cancel() bool
}

// New builds the application from resolved runtime configuration.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.SettingsPath) == "" {
		cfg.SettingsPath = config.DefaultSettingsPath()
	}

	store := config.NewJSONStore(cfg.SettingsPath)
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	loc := locator.New(config.Preferences{Store: store}, locator.Options{
		BundleDir:    cfg.BundleDir,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       logger,
	})

	return &App{
		Config:    cfg,
		Store:     store,
		Jobs:      jobs.NewManager(),
		Locator:   loc,
		Catalog:   formats.NewCatalog(loc, logger),
		Executor:  convert.NewExecutor(logger),
		checker:   diagnostics.NewChecker(loc),
		installer: newInstaller(logger),
		logger:    logger,
		events:    jobs.NewEventBus(1000),
	}, nil
}

// Watch reloads discovery whenever the preference file changes on disk,
// then calls onChange if it is non-nil. It returns once the watcher is
// registered and stops with ctx.
func (a *App) Watch(ctx context.Context, onChange func(domain.Settings)) error {
	store, ok := a.Store.(*config.JSONStore)
	if !ok {
		return fmt.Errorf("settings store does not support watching")
	}
	return config.WatchSettings(ctx, store, a.logger, func(settings domain.Settings) {
		a.logger.Info("preferences changed, resetting converter discovery",
			"custom_binary_path", settings.CustomBinaryPath)
		a.resetConverter()
		if onChange != nil {
			onChange(settings)
		}
	})
}

// Convert runs one job synchronously and returns its result. The job is
// visible through CurrentJob and JobLog while it runs and afterwards.
func (a *App) Convert(ctx context.Context, spec domain.JobSpec) (domain.ConversionResult, error) {
	jobID, runCtx, err := a.beginJob(ctx, spec)
	if err != nil {
		return domain.ConversionResult{}, err
	}
	return a.runJob(runCtx, jobID, spec)
}

// StartConversion creates a job and runs it asynchronously.
func (a *App) StartConversion(spec domain.JobSpec) (domain.Job, error) {
	jobID, runCtx, err := a.beginJob(context.Background(), spec)
	if err != nil {
		return domain.Job{}, err
	}

	go func() {
		_, _ = a.runJob(runCtx, jobID, spec)
	}()
	return a.Jobs.Current(), nil
}

// CancelConversion stops the running job, if any.
func (a *App) CancelConversion() error {
	if err := a.Jobs.Cancel(); err != nil {
		return err
	}

	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if a.Executor != nil {
		a.Executor.Cancel()
	}
	if cancel != nil {
		cancel()
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, a.Jobs.Current().Status, "Cancellation requested")
	}
	return nil
}

// WaitForJob blocks until the current job reaches a terminal status or ctx ends.
func (a *App) WaitForJob(ctx context.Context) (domain.Job, error) {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return a.Jobs.Current(), ctx.Err()
		}
	}
	return a.Jobs.Current(), nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobLog returns the human-readable log of the current or last job.
func (a *App) JobLog() []string {
	a.mu.Lock()
	log := a.log
	a.mu.Unlock()
	if log == nil {
		return nil
	}
	return log.Lines()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LastEventSeq returns the sequence of the newest event, or 0.
func (a *App) LastEventSeq() int64 {
	return a.events.LastSeq()
}

// Formats returns the whole catalog and whether it came from gpsbabel.
func (a *App) Formats(ctx context.Context) ([]domain.Format, formats.Source) {
	return a.Catalog.All(ctx)
}

// LookupFormat finds a catalog format by id; "auto" is the sentinel.
func (a *App) LookupFormat(ctx context.Context, id string) (domain.Format, bool) {
	return a.Catalog.Lookup(ctx, strings.TrimSpace(id))
}

// ReadFormats lists formats usable as conversion input.
func (a *App) ReadFormats(ctx context.Context) []domain.Format {
	return a.Catalog.ReadFormats(ctx)
}

// WriteFormats lists formats usable as conversion output.
func (a *App) WriteFormats(ctx context.Context) []domain.Format {
	return a.Catalog.WriteFormats(ctx)
}

// BinaryStatus reports whether gpsbabel is usable and which build it is.
func (a *App) BinaryStatus(ctx context.Context) domain.BinaryStatus {
	path, err := a.Locator.Locate(ctx)
	if err != nil {
		return domain.BinaryStatus{Error: err.Error()}
	}

	status := domain.BinaryStatus{Available: true, Path: path}
	version, err := a.Locator.Version(ctx)
	if err != nil {
		a.logger.Warn("query converter version", "path", path, "error", err)
		return status
	}
	status.Version = locator.FirstLine(version)
	return status
}

// SetCustomBinaryPath persists a user override and resets discovery.
// An empty path clears the override.
func (a *App) SetCustomBinaryPath(path string) error {
	path = strings.TrimSpace(path)
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve custom binary path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("custom binary path: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("custom binary path %s is a directory", abs)
		}
		path = abs
	}

	if err := a.Locator.SetCustomPath(path); err != nil {
		return err
	}
	a.resetConverter()
	return nil
}

// Diagnostics checks the converter and preference store.
func (a *App) Diagnostics(ctx context.Context) (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.checker.Run(ctx, settings, a.Config.SettingsPath), nil
}

// DefaultOutputPath places the output next to input, named after it, with
// the primary extension of format.
func DefaultOutputPath(input string, format domain.Format) string {
	ext := format.PrimaryExtension()
	if ext == "" {
		ext = ".gpx"
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+ext)
}

// beginJob claims the job slot and installs the cancellation handle.
func (a *App) beginJob(parent context.Context, spec domain.JobSpec) (string, context.Context, error) {
	jobID := strings.TrimSpace(spec.ID)
	if jobID == "" {
		jobID = domain.NewJobID()
	}
	if err := a.Jobs.Start(jobID); err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.done = make(chan struct{})
	a.log = jobs.NewLog()
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusPending, "Job started")
	return jobID, ctx, nil
}

// runJob executes one claimed job and maps outcomes to status and log.
func (a *App) runJob(ctx context.Context, jobID string, spec domain.JobSpec) (domain.ConversionResult, error) {
	defer a.clearActiveJob(jobID)
	spec.ID = jobID

	a.appendLog(jobID, "Starting conversion...")

	binaryPath, err := a.Locator.Locate(ctx)
	if err != nil {
		return a.finishWithError(ctx, jobID, nil, err)
	}

	resolved, err := a.resolveSpec(ctx, spec)
	if err != nil {
		return a.finishWithError(ctx, jobID, nil, err)
	}
	a.logSelection(ctx, jobID, resolved)

	// A cancel that lands while pending never spawns gpsbabel.
	if ctx.Err() != nil || a.Jobs.CancelRequested() {
		return a.finishWithError(ctx, jobID, nil, convert.ErrCancelled)
	}
	if err := a.Jobs.Transition(domain.JobStatusRunning); err != nil {
		return a.finishWithError(ctx, jobID, nil, err)
	}
	a.publishStatus(jobID, domain.JobStatusRunning, "Running gpsbabel")
	a.appendLog(jobID, "Running gpsbabel...")
	a.logger.Info("conversion started",
		"job", jobID,
		"binary", binaryPath,
		"input", resolved.InputPath,
		"output", resolved.OutputPath,
		"output_format", resolved.OutputFormat.ID,
	)

	result, err := a.Executor.Run(ctx, binaryPath, resolved)
	if result.Stdout != "" {
		a.appendLog(jobID, "Output:\n"+strings.TrimRight(result.Stdout, "\n"))
	}
	if result.Stderr != "" {
		a.appendLog(jobID, "Messages:\n"+strings.TrimRight(result.Stderr, "\n"))
	}
	if err != nil {
		return a.finishWithError(ctx, jobID, &result, err)
	}

	status := result.StatusMessage()
	a.appendLog(jobID, "✓ "+status)
	a.appendLog(jobID, fmt.Sprintf("Duration: %.2fs", result.DurationSeconds()))
	_ = a.Jobs.Finish(domain.JobStatusCompleted, status, &result)
	a.publishStatus(jobID, domain.JobStatusCompleted, status)
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusCompleted,
		Message:    status,
		OutputPath: resolved.OutputPath,
		OutputSize: result.OutputSize,
	})
	a.logger.Info("conversion completed", "job", jobID, "duration", result.Duration, "output", resolved.OutputPath)
	return result, nil
}

// finishWithError records a failed or cancelled outcome and returns err.
func (a *App) finishWithError(ctx context.Context, jobID string, result *domain.ConversionResult, err error) (domain.ConversionResult, error) {
	var out domain.ConversionResult
	if result != nil {
		out = *result
	}

	if errors.Is(err, convert.ErrCancelled) || ctx.Err() != nil {
		a.appendLog(jobID, "✗ Conversion cancelled")
		_ = a.Jobs.Finish(domain.JobStatusCancelled, "Conversion cancelled", result)
		a.publishStatus(jobID, domain.JobStatusCancelled, "Job cancelled")
		a.logger.Info("conversion cancelled", "job", jobID)
		return out, convert.ErrCancelled
	}

	message := err.Error()
	a.appendLog(jobID, "✗ Conversion failed")
	a.appendLog(jobID, "Error: "+message)
	_ = a.Jobs.Finish(domain.JobStatusFailed, message, result)
	a.publishStatus(jobID, domain.JobStatusFailed, "Job failed")
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeError,
		Status:   domain.JobStatusFailed,
		Message:  message,
		ExitCode: out.ExitCode,
	})
	a.logger.Warn("conversion failed", "job", jobID, "error", err)
	return out, err
}

// resolveSpec replaces caller-supplied format ids with catalog entries and
// checks each can be used in its direction.
func (a *App) resolveSpec(ctx context.Context, spec domain.JobSpec) (domain.JobSpec, error) {
	_, source := a.Catalog.All(ctx)
	trusted := source == formats.SourceBinary

	outID := strings.TrimSpace(spec.OutputFormat.ID)
	if outID == "" || outID == domain.AutoDetectID {
		return spec, fmt.Errorf("%w: an output format is required", ErrUnsupportedFormat)
	}
	out, ok := a.Catalog.Lookup(ctx, outID)
	switch {
	case ok && !out.SupportsWrite:
		return spec, fmt.Errorf("%w: gpsbabel cannot write %q", ErrUnsupportedFormat, outID)
	case !ok && trusted:
		return spec, fmt.Errorf("%w: unknown output format %q", ErrUnsupportedFormat, outID)
	case !ok:
		// Builtin list is partial; let gpsbabel judge the id.
		a.logger.Warn("output format not in built-in list, passing through", "format", outID)
		out = domain.Format{ID: outID, Name: outID, SupportsWrite: true}
	}
	spec.OutputFormat = out

	if spec.InputFormat == nil || spec.InputFormat.IsAutoDetect() {
		spec.InputFormat = nil
		return spec, nil
	}

	inID := strings.TrimSpace(spec.InputFormat.ID)
	in, ok := a.Catalog.Lookup(ctx, inID)
	switch {
	case ok && !in.SupportsRead:
		return spec, fmt.Errorf("%w: gpsbabel cannot read %q", ErrUnsupportedFormat, inID)
	case !ok && trusted:
		return spec, fmt.Errorf("%w: unknown input format %q", ErrUnsupportedFormat, inID)
	case !ok:
		a.logger.Warn("input format not in built-in list, passing through", "format", inID)
		in = domain.Format{ID: inID, Name: inID, SupportsRead: true}
	}
	spec.InputFormat = &in
	return spec, nil
}

// logSelection writes the selection, paths, formats and filters.
func (a *App) logSelection(ctx context.Context, jobID string, spec domain.JobSpec) {
	name := filepath.Base(spec.InputPath)
	if detected, ok := a.Catalog.Detect(ctx, spec.InputPath); ok {
		a.appendLog(jobID, fmt.Sprintf("Selected: %s (detected as %s)", name, detected.Label()))
	} else {
		a.appendLog(jobID, "Selected: "+name)
	}

	inputLabel := domain.AutoDetect.Label()
	if spec.InputFormat != nil {
		inputLabel = spec.InputFormat.Label()
	}
	a.appendLog(jobID, "Input: "+spec.InputPath)
	a.appendLog(jobID, "Output: "+spec.OutputPath)
	a.appendLog(jobID, fmt.Sprintf("Format: %s → %s", inputLabel, spec.OutputFormat.Label()))
	for _, filter := range spec.Filters {
		a.appendLog(jobID, "Filter: "+filter.Description())
	}
}

// appendLog adds a line to the job log and mirrors it as an event.
func (a *App) appendLog(jobID, line string) {
	a.mu.Lock()
	log := a.log
	a.mu.Unlock()
	if log != nil {
		log.Append(line)
	}
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeLog,
		Message: line,
	})
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history.
func (a *App) publishEvent(event jobs.Event) {
	if a.events == nil {
		return
	}
	a.events.Publish(event)
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID != jobID {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		close(a.done)
	}
	a.activeJobID = ""
	a.cancel = nil
}

// resetConverter forgets the located binary and its format list.
func (a *App) resetConverter() {
	a.Locator.Reset()
	a.Catalog.Invalidate()
}
