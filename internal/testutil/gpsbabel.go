// Package testutil builds fake gpsbabel executables for process-level tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// VersionBanner is what every fake answers to --version.
const VersionBanner = "GPSBabel Version 1.9.0"

// CaptureOutputPath is a shell snippet that stores the -F argument in $out.
const CaptureOutputPath = `out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-F" ]; then out="$arg"; fi
  prev="$arg"
done
`

// FakeGPSBabel writes an executable shell script named gpsbabel into dir.
// The script answers --version with VersionBanner and runs body otherwise.
func FakeGPSBabel(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake gpsbabel scripts need a POSIX shell")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "gpsbabel")
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--version\" ]; then echo \"" + VersionBanner + "\"; exit 0; fi\n" +
		body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake gpsbabel: %v", err)
	}
	return path
}

// BrokenGPSBabel writes an executable that fails its --version probe.
func BrokenGPSBabel(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake gpsbabel scripts need a POSIX shell")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "gpsbabel")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write broken gpsbabel: %v", err)
	}
	return path
}

// MustWriteFile creates parent directories and writes content.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
