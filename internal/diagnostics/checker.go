// Package diagnostics reports whether gpsconv can run conversions.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gpsconv/internal/domain"
	"gpsconv/internal/locator"
)

// BinaryProbe resolves the converter, reports its version and lists the
// locations it searches.
type BinaryProbe interface {
	Locate(ctx context.Context) (string, error)
	Version(ctx context.Context) (string, error)
	Candidates() []locator.Candidate
}

// Checker validates the converter binary and the preference file location.
type Checker struct {
	probe      BinaryProbe
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(probe BinaryProbe) *Checker {
	return &Checker{
		probe:      probe,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings, settingsPath string) domain.DiagnosticReport {
	binary, path := c.checkBinary(ctx)
	items := []domain.DiagnosticItem{
		binary,
		c.checkVersion(ctx, path),
		c.checkCustomPath(settings.CustomBinaryPath),
		c.checkPreferenceStore(settingsPath),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkBinary runs discovery and returns the resolved path on success.
func (c *Checker) checkBinary(ctx context.Context) (domain.DiagnosticItem, string) {
	item := domain.DiagnosticItem{
		ID:   "converter_binary",
		Name: "GPSBabel binary",
	}

	path, err := c.probe.Locate(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "GPSBabel was not found in any known location."
		if searched := searchedPaths(c.probe.Candidates()); searched != "" {
			item.Message = "GPSBabel was not found. Searched: " + searched
		}
		item.Hint = "Run `gpsconv install`, `brew install gpsbabel`, or point `gpsconv binary set` at an existing executable."
		if !errors.Is(err, locator.ErrBinaryNotFound) {
			item.Message = fmt.Sprintf("GPSBabel discovery failed: %v", err)
		}
		return item, ""
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item, path
}

// searchedPaths renders the non-empty candidates as "source (path)".
func searchedPaths(candidates []locator.Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Path == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", candidate.Source, candidate.Path))
	}
	return strings.Join(parts, ", ")
}

// checkVersion reports the version headline of a resolved binary.
func (c *Checker) checkVersion(ctx context.Context, path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "converter_version",
		Name: "GPSBabel version",
	}

	if path == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Skipped: no usable binary."
		return item
	}

	version, err := c.probe.Version(ctx)
	if err != nil || strings.TrimSpace(version) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Binary did not report a version."
		item.Hint = "Check that the executable is a real gpsbabel build."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = locator.FirstLine(version)
	return item
}

// checkCustomPath warns about a saved path that discovery will skip.
func (c *Checker) checkCustomPath(customPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "custom_binary_path",
		Name: "Custom binary path",
	}

	if strings.TrimSpace(customPath) == "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Not set; automatic discovery is used."
		return item
	}

	info, err := c.stat(customPath)
	switch {
	case err != nil:
		item.Status = domain.DiagnosticStatusWarn
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Saved path does not exist: %s", customPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access saved path: %s", customPath)
		}
		item.Hint = "Clear it with `gpsconv binary clear` or set a new one."
	case info.IsDir() || info.Mode().Perm()&0o111 == 0:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Saved path is not an executable file: %s", customPath)
		item.Hint = "Clear it with `gpsconv binary clear` or set a new one."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Using %s", customPath)
	}
	return item
}

// checkPreferenceStore validates the settings directory is writable.
func (c *Checker) checkPreferenceStore(settingsPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "preference_store",
		Name: "Preference store",
	}

	if strings.TrimSpace(settingsPath) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No preference file configured; settings will not persist."
		return item
	}

	dir := filepath.Dir(settingsPath)
	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create settings directory: %s", dir)
		item.Hint = "Choose a writable location with --config or GPSCONV_SETTINGS_PATH."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Settings directory is not writable: %s", dir)
		item.Hint = "Adjust filesystem permissions or choose another settings path."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable: %s", settingsPath)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	probe BinaryProbe,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	c := NewChecker(probe)
	c.stat = stat
	c.mkdirAll = mkdirAll
	c.createTemp = createTemp
	c.remove = remove
	return c
}
