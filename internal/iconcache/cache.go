package iconcache

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"

	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/metrics"
)

const (
	// DefaultSize is the edge length in pixels of extracted icons.
	DefaultSize = 48

	maxKeyLen = 50
	extension = ".png"
)

// ErrNotFound is returned by extractors that have no icon for a program.
var ErrNotFound = errors.New("icon not found")

// Extractor produces an icon image for a program. target is the resolved
// program path, hint an optional icon name or path from the shortcut.
type Extractor interface {
	Extract(target, hint string, size int) (image.Image, error)
}

// Cache stores extracted icons on disk.
type Cache struct {
	dir       string
	size      int
	extractor Extractor
}

// New creates the cache directory if needed.
func New(dir string, size int, extractor Extractor) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create icon cache directory: %w", err)
	}
	return &Cache{dir: dir, size: size, extractor: extractor}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives the cache file name for a display name: letters, digits,
// spaces, hyphens and underscores are kept, the result is cut to 50
// characters, spaces become underscores and ".png" is appended.
func Key(displayName string) string {
	var b strings.Builder
	n := 0
	for _, r := range displayName {
		if n == maxKeyLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
			n++
		}
	}
	return strings.ReplaceAll(b.String(), " ", "_") + extension
}

// Path returns where the icon for displayName is cached.
func (c *Cache) Path(displayName string) string {
	return filepath.Join(c.dir, Key(displayName))
}

// Lookup returns the cached icon path for displayName, extracting it first
// when it is not cached yet. ok is false when no icon could be produced.
func (c *Cache) Lookup(displayName, target, hint string) (path string, ok bool) {
	path = c.Path(displayName)
	if _, err := os.Stat(path); err == nil {
		metrics.IconLookups.WithLabelValues("cached").Inc()
		return path, true
	}

	if c.extractor == nil {
		metrics.IconLookups.WithLabelValues("missing").Inc()
		return "", false
	}

	img, err := c.extractor.Extract(target, hint, c.size)
	if err != nil {
		logging.Debug("No icon for %q (%s): %v", displayName, target, err)
		metrics.IconLookups.WithLabelValues("missing").Inc()
		return "", false
	}

	if err := c.save(imaging.Fit(img, c.size, c.size, imaging.Lanczos), path); err != nil {
		logging.Debug("Failed to cache icon for %q: %v", displayName, err)
		metrics.IconLookups.WithLabelValues("missing").Inc()
		return "", false
	}

	metrics.IconLookups.WithLabelValues("extracted").Inc()
	return path, true
}

// save writes through a temporary file so that concurrent lookups whose
// names sanitize to the same key never observe a partial PNG.
func (c *Cache) save(img image.Image, path string) error {
	tmp, err := os.CreateTemp(c.dir, ".icon-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Placeholder returns the glyph shown instead of a missing icon: the first
// letter or digit of the display name, uppercased, or "?".
func Placeholder(displayName string) string {
	for _, r := range displayName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}
