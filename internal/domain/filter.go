package domain

import (
	"fmt"
	"strings"
)

// Filter is one gpsbabel filter applied between reading and writing.
// The set of implementations is closed: Simplify, RemoveDuplicates, MergeTracks.
type Filter interface {
	// Args returns the filter's argument tokens in order.
	Args() []string
	// Description is the human-readable log line for the filter.
	Description() string
	isFilter()
}

// Simplify reduces track points within an error distance such as "0.001k".
type Simplify struct {
	ErrorDistance string
}

// Args selects the simplify filter with the configured error distance.
func (f Simplify) Args() []string {
	return []string{"-x", "simplify,error=" + f.ErrorDistance}
}

// Description names the filter and its error distance.
func (f Simplify) Description() string {
	return fmt.Sprintf("Simplify track (error: %s)", f.ErrorDistance)
}

func (Simplify) isFilter() {}

// RemoveDuplicates drops waypoints sharing a location.
type RemoveDuplicates struct{}

// Args selects the duplicate filter keyed on location.
func (RemoveDuplicates) Args() []string {
	return []string{"-x", "duplicate,location"}
}

// Description is the fixed log line for duplicate removal.
func (RemoveDuplicates) Description() string {
	return "Remove duplicate waypoints"
}

func (RemoveDuplicates) isFilter() {}

// MergeTracks joins all tracks into one.
type MergeTracks struct{}

// Args selects the track filter in merge mode.
func (MergeTracks) Args() []string {
	return []string{"-x", "track,merge"}
}

// Description is the fixed log line for track merging.
func (MergeTracks) Description() string {
	return "Merge all tracks"
}

func (MergeTracks) isFilter() {}

// DefaultSimplifyDistance is used when a simplify filter names no distance.
const DefaultSimplifyDistance = "0.001k"

// ParseFilter maps a CLI word to a filter:
// "simplify[=<distance>]", "duplicates", "merge".
func ParseFilter(raw string) (Filter, error) {
	name, value, hasValue := strings.Cut(strings.TrimSpace(raw), "=")
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "simplify":
		distance := strings.TrimSpace(value)
		if !hasValue || distance == "" {
			distance = DefaultSimplifyDistance
		}
		return Simplify{ErrorDistance: distance}, nil
	case "duplicates", "duplicate", "dedupe":
		if hasValue {
			return nil, fmt.Errorf("filter %q takes no value", name)
		}
		return RemoveDuplicates{}, nil
	case "merge", "merge-tracks":
		if hasValue {
			return nil, fmt.Errorf("filter %q takes no value", name)
		}
		return MergeTracks{}, nil
	default:
		return nil, fmt.Errorf("unknown filter: %q", raw)
	}
}

// FilterArgs flattens filters into argument tokens, preserving order.
func FilterArgs(filters []Filter) []string {
	args := make([]string, 0, len(filters)*2)
	for _, filter := range filters {
		args = append(args, filter.Args()...)
	}
	return args
}
