package iconcache

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	fallbackSizes = []int{48, 64, 128, 256, 32, 24, 16}
	iconExts      = []string{".png", ".webp", ".jpg", ".bmp"}
)

// ThemeExtractor finds icons in freedesktop icon themes and pixmap
// directories. SVG and XPM icons are not decoded.
type ThemeExtractor struct {
	IconDirs   []string // theme roots, e.g. /usr/share/icons
	Themes     []string // searched in order, "hicolor" last
	PixmapDirs []string
}

// NewThemeExtractor returns an extractor over the XDG data directories.
func NewThemeExtractor(dataDirs []string) *ThemeExtractor {
	t := &ThemeExtractor{Themes: []string{"hicolor"}}
	if home, err := os.UserHomeDir(); err == nil {
		t.IconDirs = append(t.IconDirs, filepath.Join(home, ".icons"))
	}
	for _, d := range dataDirs {
		t.IconDirs = append(t.IconDirs, filepath.Join(d, "icons"))
		t.PixmapDirs = append(t.PixmapDirs, filepath.Join(d, "pixmaps"))
	}
	return t
}

// Extract implements Extractor.
func (t *ThemeExtractor) Extract(target, hint string, size int) (image.Image, error) {
	path, err := t.Find(target, hint, size)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Find returns the icon file for a program. The hint wins when set; otherwise
// the icon is looked up by the target's base name.
func (t *ThemeExtractor) Find(target, hint string, size int) (string, error) {
	name := hint
	if name == "" {
		base := filepath.Base(target)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrNotFound
	}

	if filepath.IsAbs(name) {
		if isFile(name) && decodable(name) {
			return name, nil
		}
		return "", ErrNotFound
	}

	sizes := append([]int{size}, fallbackSizes...)
	for _, dir := range t.IconDirs {
		for _, theme := range t.Themes {
			for _, s := range sizes {
				sizeDir := filepath.Join(dir, theme, fmt.Sprintf("%dx%d", s, s), "apps")
				if p := lookup(sizeDir, name); p != "" {
					return p, nil
				}
			}
		}
	}
	for _, dir := range t.PixmapDirs {
		if p := lookup(dir, name); p != "" {
			return p, nil
		}
	}
	return "", ErrNotFound
}

func lookup(dir, name string) string {
	if decodable(name) {
		p := filepath.Join(dir, name)
		if isFile(p) {
			return p
		}
	}
	for _, ext := range iconExts {
		p := filepath.Join(dir, name+ext)
		if isFile(p) {
			return p
		}
	}
	return ""
}

func decodable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range iconExts {
		if e == ext {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
