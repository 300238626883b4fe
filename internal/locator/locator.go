// Package locator finds and validates the gpsbabel executable.
package locator

import (
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
)

// BinaryName is the converter executable name.
const BinaryName = "gpsbabel"

// ErrBinaryNotFound is returned after every candidate location failed validation.
var ErrBinaryNotFound = errors.New(`GPSBabel not found. Install it using Homebrew:

    brew install gpsbabel

Or download from: https://www.gpsbabel.org/download.html`)

// Candidate sources, in search order.
const (
	SourceBundled       = "bundled"
	SourceHomebrewARM   = "homebrew-arm"
	SourceHomebrewIntel = "homebrew-intel"
	SourceCustom        = "custom"
	SourcePATH          = "path"
)

// wellKnownPaths are the Homebrew install locations, Apple Silicon first.
var wellKnownPaths = []Candidate{
	{Source: SourceHomebrewARM, Path: "/opt/homebrew/bin/gpsbabel"},
	{Source: SourceHomebrewIntel, Path: "/usr/local/bin/gpsbabel"},
}

const defaultProbeTimeout = 5 * time.Second

// Candidate is one location the locator will try.
type Candidate struct {
	Source string `json:"source"`
	Path   string `json:"path"`
}

// Preferences exposes the user's custom binary override.
type Preferences interface {
	CustomBinaryPath() string
	SetCustomBinaryPath(path string) error
}

// Options configures a Locator.
type Options struct {
	// BundleDir overrides the directory searched for a bundled binary.
	// Empty means the directory of the running executable.
	BundleDir    string
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Locator resolves the converter path once and caches it until the custom
// override changes. All state is guarded by mu.
type Locator struct {
	mu     sync.Mutex
	cached string

	prefs        Preferences
	bundleDir    string
	wellKnown    []Candidate
	probeTimeout time.Duration
	logger       *slog.Logger

	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	executable func() (string, error)
}

// New builds a locator using real OS dependencies.
func New(prefs Preferences, opts Options) *Locator {
	l := &Locator{
		prefs:        prefs,
		bundleDir:    opts.BundleDir,
		wellKnown:    wellKnownPaths,
		probeTimeout: opts.ProbeTimeout,
		logger:       opts.Logger,
		lookPath:     exec.LookPath,
		stat:         os.Stat,
		executable:   os.Executable,
	}
	if l.probeTimeout <= 0 {
		l.probeTimeout = defaultProbeTimeout
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Locate returns the first candidate that validates, in priority order:
// bundled, Homebrew ARM, Homebrew Intel, custom override, PATH. A done ctx
// yields ctx.Err() rather than ErrBinaryNotFound.
func (l *Locator) Locate(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != "" {
		return l.cached, nil
	}

	for _, candidate := range l.candidates() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if candidate.Path == "" {
			continue
		}
		if l.isValidBinary(ctx, candidate.Path) {
			l.logger.Debug("converter located", "source", candidate.Source, "path", candidate.Path)
			l.cached = candidate.Path
			return candidate.Path, nil
		}
		l.logger.Debug("converter candidate rejected", "source", candidate.Source, "path", candidate.Path)
	}

	// A probe killed by ctx is not proof that the binary is missing.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrBinaryNotFound
}

// Candidates lists every location in search order. The PATH entry is
// resolved now and has an empty Path when nothing is found.
func (l *Locator) Candidates() []Candidate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.candidates()
}

// SetCustomPath persists a user override and invalidates the cache.
// An empty path clears the override.
func (l *Locator) SetCustomPath(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.prefs == nil {
		return errors.New("preference store is not configured")
	}
	if err := l.prefs.SetCustomBinaryPath(strings.TrimSpace(path)); err != nil {
		return fmt.Errorf("save custom binary path: %w", err)
	}
	l.cached = ""
	return nil
}

// Reset drops the cached path so the next Locate searches again.
func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = ""
}

// Version runs `gpsbabel --version` and returns its trimmed combined output.
func (l *Locator) Version(ctx context.Context) (string, error) {
	path, err := l.Locate(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("query %s version: %w", BinaryName, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// FirstLine returns the headline of a multi-line version banner.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (l *Locator) candidates() []Candidate {
	out := make([]Candidate, 0, len(l.wellKnown)+3)
	out = append(out, Candidate{Source: SourceBundled, Path: l.bundledPath()})
	out = append(out, l.wellKnown...)

	custom := ""
	if l.prefs != nil {
		custom = strings.TrimSpace(l.prefs.CustomBinaryPath())
	}
	out = append(out, Candidate{Source: SourceCustom, Path: custom})

	fromPATH, err := l.lookPath(BinaryName)
	if err != nil {
		fromPATH = ""
	}
	out = append(out, Candidate{Source: SourcePATH, Path: fromPATH})
	return out
}

func (l *Locator) bundledPath() string {
	dir := l.bundleDir
	if dir == "" {
		exe, err := l.executable()
		if err != nil {
			return ""
		}
		dir = filepath.Dir(exe)
	}
	return filepath.Join(dir, BinaryName)
}

// isValidBinary checks the file is an executable regular file that answers
// --version with exit code 0. Any failure makes the candidate invalid.
func (l *Locator) isValidBinary(ctx context.Context, path string) bool {
	info, err := l.stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.WaitDelay = time.Second
	return cmd.Run() == nil
}

// NewLocatorForTests creates a locator with injectable search locations.
func NewLocatorForTests(
	prefs Preferences,
	bundleDir string,
	wellKnown []Candidate,
	lookPath func(string) (string, error),
	probeTimeout time.Duration,
) *Locator {
	l := New(prefs, Options{BundleDir: bundleDir, ProbeTimeout: probeTimeout})
	l.wellKnown = wellKnown
	l.lookPath = lookPath
	return l
}
