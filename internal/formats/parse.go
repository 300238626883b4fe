package formats

import (
	"strings"

	"gpsconv/internal/domain"
)

// knownExtensions maps gpsbabel ids whose extension differs from the id,
// plus ids that are too long for the id-as-extension fallback.
var knownExtensions = map[string][]string{
	"gpx":        {".gpx"},
	"kml":        {".kml"},
	"garmin_fit": {".fit"},
	"gtrnctr":    {".tcx"},
	"csv":        {".csv"},
	"gdb":        {".gdb"},
	"nmea":       {".nmea", ".txt"},
	"gtm":        {".gtm"},
	"an1":        {".an1"},
	"gpsman":     {".gpsman"},
}

// Parse reads the tab-separated output of `gpsbabel -^2`.
//
// Records with at least five fields are the capability-flag layout
// [kind, rwFlags, id, extensions, description]; records with exactly four
// are the kind-tagged layout [kind, id, parent, description]. Shorter
// records and formats that can neither read nor write are dropped.
func Parse(output string) []domain.Format {
	var formats []domain.Format
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 4 {
			continue
		}
		if format, ok := parseRecord(fields); ok {
			formats = append(formats, format)
		}
	}
	return formats
}

func parseRecord(fields []string) (domain.Format, bool) {
	var (
		id, description string
		read, write     bool
		extensions      []string
	)

	if len(fields) >= 5 {
		flags := fields[1]
		id = fields[2]
		description = fields[4]
		read = strings.Contains(flags, "r")
		write = strings.Contains(flags, "w")
		extensions = splitExtensions(fields[3])
	} else {
		kind := fields[0]
		id = fields[1]
		description = fields[3]
		read = kind == "file" || kind == "serial"
		write = kind == "file"
	}

	id = strings.TrimSpace(id)
	if id == "" || (!read && !write) {
		return domain.Format{}, false
	}
	if len(extensions) == 0 {
		extensions = InferExtensions(id)
	}

	description = strings.TrimSpace(description)
	return domain.Format{
		ID:            id,
		Name:          description,
		Extensions:    extensions,
		SupportsRead:  read,
		SupportsWrite: write,
		Description:   description,
	}, true
}

// splitExtensions turns "tcx/crs/hst" into [".tcx", ".crs", ".hst"].
func splitExtensions(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	var out []string
	for _, ext := range strings.Split(field, "/") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// InferExtensions guesses extensions for a format id that listed none.
func InferExtensions(id string) []string {
	if exts, ok := knownExtensions[id]; ok {
		return append([]string(nil), exts...)
	}
	if len(id) <= 4 && !strings.Contains(id, "_") {
		return []string{"." + id}
	}
	return nil
}
