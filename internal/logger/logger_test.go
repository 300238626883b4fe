package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel covers names and the info fallback.
func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

// TestNewAutoFormatUsesJSONForBuffers verifies non-terminal output is JSON.
func TestNewAutoFormatUsesJSONForBuffers(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "auto"}, &buf)
	log.Info("converter located", "path", "/usr/local/bin/gpsbabel")
	log.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "converter located", entry["msg"])
	assert.Equal(t, "/usr/local/bin/gpsbabel", entry["path"])
}

// TestNewTextFormat honours an explicit text format.
func TestNewTextFormat(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	New(Config{Level: "debug", Format: "text"}, &buf).Debug("probe", "candidate", "bundled")
	assert.Contains(t, buf.String(), "msg=probe")
	assert.Contains(t, buf.String(), "candidate=bundled")
}
