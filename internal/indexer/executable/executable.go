package executable

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Exclusions are stem substrings marking maintenance binaries.
var Exclusions = []string{"uninstall", "uninst", "update", "updater", "setup"}

// IsExecutable reports whether any execute bit is set.
func IsExecutable(mode fs.FileMode) bool {
	return mode&0111 != 0
}

// IsHidden reports whether the base name starts with a dot.
func IsHidden(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}

// Ext returns the lowercase extension without the dot, "" when there is none.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Stem returns the base name without its extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Excluded reports whether the lowercase stem names an uninstaller, updater
// or installer.
func Excluded(stem string) bool {
	lower := strings.ToLower(stem)
	for _, s := range Exclusions {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// HasExtension reports whether the extension of name is one of exts.
func HasExtension(name string, exts []string) bool {
	ext := Ext(name)
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
