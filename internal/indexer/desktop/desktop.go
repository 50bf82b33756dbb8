package desktop

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const section = "Desktop Entry"

var (
	// ErrNoEntrySection is returned for files without a [Desktop Entry] group.
	ErrNoEntrySection = errors.New("missing [Desktop Entry] section")
	// ErrMissingFields is returned when neither Name nor Exec is set.
	ErrMissingFields = errors.New("missing required fields")
)

// DesktopEntry represents a parsed .desktop file
type DesktopEntry struct {
	Name       string            // Default name
	Names      map[string]string // Localized names (locale -> name)
	Type       string            // Application, Link or Directory
	Exec       string            // Exec command
	TryExec    string            // Binary used to check installation
	Icon       string            // Icon name or absolute path
	Terminal   bool              // Whether to run in terminal
	NoDisplay  bool              // Hidden from menus
	Hidden     bool              // Deleted entry
	Categories []string          // Application categories
	Path       string            // Path to .desktop file
}

// ParseDesktopFile parses a single .desktop file
func ParseDesktopFile(path string) (*DesktopEntry, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:      "=",
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sec, err := f.GetSection(section)
	if err != nil {
		return nil, ErrNoEntrySection
	}

	entry := &DesktopEntry{
		Path:    path,
		Names:   make(map[string]string),
		Name:    sec.Key("Name").String(),
		Type:    sec.Key("Type").String(),
		Exec:    sec.Key("Exec").String(),
		TryExec: sec.Key("TryExec").String(),
		Icon:    sec.Key("Icon").String(),
	}
	entry.Terminal = isTrue(sec.Key("Terminal").String())
	entry.NoDisplay = isTrue(sec.Key("NoDisplay").String())
	entry.Hidden = isTrue(sec.Key("Hidden").String())

	// Categories are semicolon-separated
	for _, cat := range strings.Split(sec.Key("Categories").String(), ";") {
		if cat = strings.TrimSpace(cat); cat != "" {
			entry.Categories = append(entry.Categories, cat)
		}
	}

	for _, key := range sec.Keys() {
		name := key.Name()
		if strings.HasPrefix(name, "Name[") && strings.HasSuffix(name, "]") {
			entry.Names[name[5:len(name)-1]] = key.String()
		}
	}

	if entry.Name == "" && entry.Exec == "" {
		return nil, ErrMissingFields
	}

	return entry, nil
}

func isTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// GetLocalizedName returns the localized name for the given locale, or default name
func (d *DesktopEntry) GetLocalizedName(locale string) string {
	if locale == "" {
		return d.Name
	}

	// Drop encoding and modifier, e.g. "de_DE.UTF-8@euro"
	if i := strings.IndexAny(locale, ".@"); i > 0 {
		locale = locale[:i]
	}

	if name, ok := d.Names[locale]; ok && name != "" {
		return name
	}

	// Try language part (e.g., "en" from "en_US" or "en-US")
	if idx := strings.IndexAny(locale, "_-"); idx > 0 {
		if name, ok := d.Names[locale[:idx]]; ok && name != "" {
			return name
		}
	}

	return d.Name
}

// Launchable reports whether the entry should appear in the index.
func (d *DesktopEntry) Launchable() bool {
	return !d.NoDisplay && !d.Hidden && d.Type != "Directory"
}

// Program returns the first word of the command, skipping an "env VAR=..." prefix.
func (d *DesktopEntry) Program() string {
	if d.TryExec != "" {
		return d.TryExec
	}
	fields := strings.Fields(CleanExecCommand(d.Exec))
	i := 0
	if i < len(fields) && fields[i] == "env" {
		i++
		for i < len(fields) && strings.Contains(fields[i], "=") {
			i++
		}
	}
	if i >= len(fields) {
		return ""
	}
	return strings.Trim(fields[i], `"'`)
}

// TargetPath resolves Program to an absolute path. It returns "" when the
// program cannot be found.
func (d *DesktopEntry) TargetPath() string {
	prog := d.Program()
	if prog == "" {
		return ""
	}
	if filepath.IsAbs(prog) {
		return prog
	}
	resolved, err := exec.LookPath(prog)
	if err != nil {
		return ""
	}
	return resolved
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}

// CleanExecCommand removes field codes and extra spaces from exec command
func CleanExecCommand(exec string) string {
	exec = removeFieldCodes(exec)
	return strings.Join(strings.Fields(exec), " ")
}

// Shortcut is what the indexer needs from a desktop entry.
type Shortcut struct {
	DisplayName string
	Target      string // resolved program, "" when not installed
	Icon        string
	Hidden      bool // NoDisplay, Hidden or Type=Directory
}

// Resolve parses the entry at path and resolves its program and localized
// name.
func Resolve(path, locale string) (Shortcut, error) {
	entry, err := ParseDesktopFile(path)
	if err != nil {
		return Shortcut{}, err
	}
	return Shortcut{
		DisplayName: strings.TrimSpace(entry.GetLocalizedName(locale)),
		Target:      entry.TargetPath(),
		Icon:        entry.Icon,
		Hidden:      !entry.Launchable(),
	}, nil
}
