package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsconv/internal/testutil"
)

// memPrefs is an in-memory preference store.
type memPrefs struct {
	path string
	err  error
}

func (p *memPrefs) CustomBinaryPath() string { return p.path }

func (p *memPrefs) SetCustomBinaryPath(path string) error {
	if p.err != nil {
		return p.err
	}
	p.path = path
	return nil
}

func notOnPATH(string) (string, error) { return "", errors.New("not found") }

func missing(dir string) []Candidate {
	return []Candidate{
		{Source: SourceHomebrewARM, Path: filepath.Join(dir, "arm", "gpsbabel")},
		{Source: SourceHomebrewIntel, Path: filepath.Join(dir, "intel", "gpsbabel")},
	}
}

// TestLocatePrefersBundledOverHomebrew checks tier 1 wins over tier 2.
func TestLocatePrefersBundledOverHomebrew(t *testing.T) {
	root := t.TempDir()
	bundled := testutil.FakeGPSBabel(t, filepath.Join(root, "bundle"), "exit 0")
	brew := testutil.FakeGPSBabel(t, filepath.Join(root, "brew"), "exit 0")

	l := NewLocatorForTests(&memPrefs{}, filepath.Dir(bundled), []Candidate{
		{Source: SourceHomebrewARM, Path: brew},
	}, notOnPATH, time.Second)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bundled, got)
}

// TestLocatePrefersCustomOverPATH checks tier 4 wins over tier 5.
func TestLocatePrefersCustomOverPATH(t *testing.T) {
	root := t.TempDir()
	custom := testutil.FakeGPSBabel(t, filepath.Join(root, "custom"), "exit 0")
	onPath := testutil.FakeGPSBabel(t, filepath.Join(root, "bin"), "exit 0")

	l := NewLocatorForTests(&memPrefs{path: custom}, filepath.Join(root, "nobundle"), missing(root),
		func(string) (string, error) { return onPath, nil }, time.Second)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

// TestLocateFallsBackToPATH checks the last-resort tier.
func TestLocateFallsBackToPATH(t *testing.T) {
	root := t.TempDir()
	onPath := testutil.FakeGPSBabel(t, filepath.Join(root, "bin"), "exit 0")

	l := NewLocatorForTests(&memPrefs{}, filepath.Join(root, "nobundle"), missing(root),
		func(string) (string, error) { return onPath, nil }, time.Second)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, onPath, got)
}

// TestLocateSkipsInvalidCandidates checks failing probes and non-executables are skipped.
func TestLocateSkipsInvalidCandidates(t *testing.T) {
	root := t.TempDir()
	broken := testutil.BrokenGPSBabel(t, filepath.Join(root, "bundle"))
	notExec := filepath.Join(root, "plain", "gpsbabel")
	testutil.MustWriteFile(t, notExec, "#!/bin/sh\nexit 0\n")
	good := testutil.FakeGPSBabel(t, filepath.Join(root, "intel"), "exit 0")

	l := NewLocatorForTests(&memPrefs{}, filepath.Dir(broken), []Candidate{
		{Source: SourceHomebrewARM, Path: notExec},
		{Source: SourceHomebrewIntel, Path: good},
	}, notOnPATH, time.Second)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

// TestLocateTimeoutCountsAsInvalid checks hung probes do not block the search.
func TestLocateTimeoutCountsAsInvalid(t *testing.T) {
	root := t.TempDir()
	hung := filepath.Join(root, "bundle", "gpsbabel")
	require.NoError(t, os.MkdirAll(filepath.Dir(hung), 0o755))
	require.NoError(t, os.WriteFile(hung, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	l := NewLocatorForTests(&memPrefs{}, filepath.Dir(hung), missing(root), notOnPATH, 200*time.Millisecond)

	start := time.Now()
	_, err := l.Locate(context.Background())
	assert.ErrorIs(t, err, ErrBinaryNotFound)
	assert.Less(t, time.Since(start), 10*time.Second)
}

// TestLocateNotFound checks the error after all tiers fail.
func TestLocateNotFound(t *testing.T) {
	root := t.TempDir()
	l := NewLocatorForTests(&memPrefs{path: filepath.Join(root, "nope")}, root, missing(root), notOnPATH, time.Second)

	_, err := l.Locate(context.Background())
	require.ErrorIs(t, err, ErrBinaryNotFound)
	assert.Contains(t, err.Error(), "brew install gpsbabel")
}

// TestLocateCachesUntilCustomPathChanges checks cache lifetime rules.
func TestLocateCachesUntilCustomPathChanges(t *testing.T) {
	root := t.TempDir()
	first := testutil.FakeGPSBabel(t, filepath.Join(root, "first"), "exit 0")
	second := testutil.FakeGPSBabel(t, filepath.Join(root, "second"), "exit 0")
	prefs := &memPrefs{path: first}

	l := NewLocatorForTests(prefs, filepath.Join(root, "nobundle"), missing(root), notOnPATH, time.Second)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, got)

	// Removing the binary does not invalidate a validated path.
	require.NoError(t, os.Remove(first))
	got, err = l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, got)

	require.NoError(t, l.SetCustomPath(second))
	got, err = l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.NoError(t, l.SetCustomPath(""))
	assert.Empty(t, prefs.path)
	_, err = l.Locate(context.Background())
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}

// TestSetCustomPathKeepsCacheOnSaveError checks a failed save changes nothing.
func TestSetCustomPathKeepsCacheOnSaveError(t *testing.T) {
	root := t.TempDir()
	bin := testutil.FakeGPSBabel(t, filepath.Join(root, "bundle"), "exit 0")
	prefs := &memPrefs{err: errors.New("disk full")}

	l := NewLocatorForTests(prefs, filepath.Dir(bin), missing(root), notOnPATH, time.Second)
	_, err := l.Locate(context.Background())
	require.NoError(t, err)

	assert.Error(t, l.SetCustomPath("/elsewhere"))

	// Still served from the cache even though the file is gone.
	require.NoError(t, os.Remove(bin))
	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

// TestLocateReturnsContextError checks an interrupted search is not
// reported as a missing binary.
func TestLocateReturnsContextError(t *testing.T) {
	root := t.TempDir()
	bin := testutil.FakeGPSBabel(t, filepath.Join(root, "bundle"), "exit 0")
	l := NewLocatorForTests(&memPrefs{}, filepath.Dir(bin), missing(root), notOnPATH, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Locate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBinaryNotFound)

	got, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

// TestVersion checks the version banner is returned trimmed.
func TestVersion(t *testing.T) {
	root := t.TempDir()
	bin := testutil.FakeGPSBabel(t, filepath.Join(root, "bundle"), "exit 0")

	l := NewLocatorForTests(&memPrefs{}, filepath.Dir(bin), missing(root), notOnPATH, time.Second)
	version, err := l.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.VersionBanner, version)
}

// TestVersionWithoutBinary surfaces ErrBinaryNotFound.
func TestVersionWithoutBinary(t *testing.T) {
	root := t.TempDir()
	l := NewLocatorForTests(&memPrefs{}, root, missing(root), notOnPATH, time.Second)
	_, err := l.Version(context.Background())
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}

// TestCandidatesOrder checks the reported search order.
func TestCandidatesOrder(t *testing.T) {
	root := t.TempDir()
	l := NewLocatorForTests(&memPrefs{path: "/custom/gpsbabel"}, root, missing(root),
		func(string) (string, error) { return "/usr/bin/gpsbabel", nil }, time.Second)

	sources := []string{}
	for _, c := range l.Candidates() {
		sources = append(sources, c.Source)
	}
	assert.Equal(t, []string{SourceBundled, SourceHomebrewARM, SourceHomebrewIntel, SourceCustom, SourcePATH}, sources)
}

// TestFirstLine extracts the version headline.
func TestFirstLine(t *testing.T) {
	assert.Equal(t, "GPSBabel Version 1.9.0", FirstLine("\n  GPSBabel Version 1.9.0\nCopyright\n"))
	assert.Empty(t, FirstLine(""))
}
