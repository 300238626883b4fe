package formats

import "gpsconv/internal/domain"

var builtinFormats = []domain.Format{
	{
		ID:            "gpx",
		Name:          "GPX - GPS Exchange Format",
		Extensions:    []string{".gpx"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "GPS Exchange Format - the standard for GPS data exchange",
	},
	{
		ID:            "kml",
		Name:          "KML - Google Earth",
		Extensions:    []string{".kml"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "Google Earth KML format",
	},
	{
		ID:            "garmin_fit",
		Name:          "FIT - Garmin",
		Extensions:    []string{".fit"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "Garmin FIT activity files",
	},
	{
		ID:            "gtrnctr",
		Name:          "TCX - Training Center XML",
		Extensions:    []string{".tcx"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "Garmin Training Center XML",
	},
	{
		ID:            "csv",
		Name:          "CSV - Comma Separated Values",
		Extensions:    []string{".csv"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "Comma-separated values",
	},
	{
		ID:            "gdb",
		Name:          "GDB - Garmin Database",
		Extensions:    []string{".gdb"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "Garmin GPS database",
	},
}

// Builtin returns the fallback catalog used when gpsbabel cannot list formats.
func Builtin() []domain.Format {
	out := make([]domain.Format, len(builtinFormats))
	for i, f := range builtinFormats {
		f.Extensions = append([]string(nil), f.Extensions...)
		out[i] = f
	}
	return out
}
