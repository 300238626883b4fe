package domain

import (
	"path/filepath"
	"strings"
)

// AutoDetectID is the format id meaning "let gpsbabel infer the input format".
const AutoDetectID = "auto"

// Format describes one gpsbabel file format.
type Format struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Extensions    []string `json:"extensions"`
	SupportsRead  bool     `json:"supportsRead"`
	SupportsWrite bool     `json:"supportsWrite"`
	Description   string   `json:"description"`
}

// AutoDetect is the read-only input sentinel.
var AutoDetect = Format{
	ID:           AutoDetectID,
	Name:         "Auto-detect",
	SupportsRead: true,
	Description:  "Automatically detect the input format",
}

// IsAutoDetect reports whether f is the auto-detect sentinel.
func (f Format) IsAutoDetect() bool {
	return f.ID == AutoDetectID
}

// MatchesExtension compares ext against the format's extensions,
// ignoring case and an optional leading dot on either side.
func (f Format) MatchesExtension(ext string) bool {
	want := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if want == "" {
		return false
	}
	for _, candidate := range f.Extensions {
		if strings.TrimPrefix(strings.ToLower(candidate), ".") == want {
			return true
		}
	}
	return false
}

// MatchesPath reports whether the extension of path belongs to the format.
func (f Format) MatchesPath(path string) bool {
	return f.MatchesExtension(filepath.Ext(path))
}

// PrimaryExtension returns the first known extension or "".
func (f Format) PrimaryExtension() string {
	if len(f.Extensions) == 0 {
		return ""
	}
	return f.Extensions[0]
}

// Label returns the display name, falling back to the id.
func (f Format) Label() string {
	if strings.TrimSpace(f.Name) != "" {
		return f.Name
	}
	return f.ID
}
