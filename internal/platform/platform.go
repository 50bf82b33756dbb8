// Package platform knows where applications live on a Linux desktop.
package platform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/0xADE/ade-launchd/internal/indexer"
)

const (
	shortcutDepth   = 5
	executableDepth = 2
	pathDepth       = 1
)

var defaultDataDirs = []string{"/usr/local/share", "/usr/share"}

// Options describes the user environment. Empty fields fall back to the
// XDG defaults.
type Options struct {
	Home     string
	DataHome string   // $XDG_DATA_HOME
	DataDirs []string // $XDG_DATA_DIRS
	PathDirs []string
	ScanPath bool
}

// OptionsFromEnv reads HOME and the XDG variables from the environment.
func OptionsFromEnv(pathDirs []string, scanPath bool) Options {
	home, _ := os.UserHomeDir()
	opts := Options{
		Home:     home,
		DataHome: os.Getenv("XDG_DATA_HOME"),
		PathDirs: pathDirs,
		ScanPath: scanPath,
	}
	for _, d := range strings.Split(os.Getenv("XDG_DATA_DIRS"), ":") {
		if d != "" {
			opts.DataDirs = append(opts.DataDirs, d)
		}
	}
	return opts
}

func (o Options) dataHome() string {
	if o.DataHome != "" {
		return o.DataHome
	}
	if o.Home == "" {
		return ""
	}
	return filepath.Join(o.Home, ".local", "share")
}

// DataDirs returns the user data directory followed by the system ones,
// the order in which XDG lookups are made.
func DataDirs(o Options) []string {
	dirs := o.DataDirs
	if len(dirs) == 0 {
		dirs = defaultDataDirs
	}
	var out []string
	if h := o.dataHome(); h != "" {
		out = append(out, h)
	}
	return unique(append(out, dirs...))
}

// Roots returns the directories to scan. Shortcut roots come first.
func Roots(o Options) []indexer.Root {
	var shortcutDirs []string
	for _, d := range DataDirs(o) {
		shortcutDirs = append(shortcutDirs, filepath.Join(d, "applications"))
	}
	if h := o.dataHome(); h != "" {
		shortcutDirs = append(shortcutDirs, filepath.Join(h, "flatpak", "exports", "share", "applications"))
	}
	shortcutDirs = append(shortcutDirs, "/var/lib/flatpak/exports/share/applications")

	var roots []indexer.Root
	for _, d := range unique(shortcutDirs) {
		roots = append(roots, indexer.Root{
			Dir:        d,
			Source:     indexer.SourcePrimary,
			MaxDepth:   shortcutDepth,
			Extensions: []string{"desktop"},
		})
	}

	programDirs := []string{"/opt"}
	if o.Home != "" {
		programDirs = append(programDirs, filepath.Join(o.Home, "Applications"))
	}
	for _, d := range unique(programDirs) {
		roots = append(roots, executableRoot(d, executableDepth))
	}

	if o.ScanPath {
		for _, d := range unique(o.PathDirs) {
			roots = append(roots, executableRoot(d, pathDepth))
		}
	}
	return roots
}

func executableRoot(dir string, depth int) indexer.Root {
	return indexer.Root{
		Dir:         dir,
		Source:      indexer.SourceSecondary,
		MaxDepth:    depth,
		Extensions:  []string{"", "appimage"},
		RequireExec: true,
	}
}

func unique(dirs []string) []string {
	seen := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = filepath.Clean(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
