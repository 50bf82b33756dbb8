package indexer

import (
	"fmt"
)

// Source tells where an entry was discovered. Lower values rank first.
type Source int

const (
	// SourcePrimary marks application shortcuts (.desktop files).
	SourcePrimary Source = iota
	// SourceSecondary marks standalone executables.
	SourceSecondary
)

// Priority returns the scan ordering rank of the source.
func (s Source) Priority() int {
	return int(s)
}

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	switch s {
	case SourcePrimary, SourceSecondary:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("unknown source %d", int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary":
		*s = SourcePrimary
	case "secondary":
		*s = SourceSecondary
	default:
		return fmt.Errorf("unknown source %q", b)
	}
	return nil
}

// Entry represents a single indexed launchable item
type Entry struct {
	Path        string `json:"path"`                // .desktop file or executable
	Name        string `json:"name"`                // lowercase file stem
	DisplayName string `json:"display_name"`        // never empty
	Source      Source `json:"source"`              // ranked priority
	IconPath    string `json:"icon_path,omitempty"` // cached icon, empty when absent
	Target      string `json:"target,omitempty"`    // resolved shortcut target
}

// HasIcon reports whether a cached icon is available.
func (e Entry) HasIcon() bool {
	return e.IconPath != ""
}

// Root is a directory to scan together with its filters.
type Root struct {
	Dir         string
	Source      Source
	MaxDepth    int
	Extensions  []string // lowercase, without dot; "" matches files without extension
	RequireExec bool
}
