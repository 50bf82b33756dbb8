package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/0xADE/ade-launchd/internal/indexer/desktop"
	"github.com/0xADE/ade-launchd/internal/indexer/executable"
	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/metrics"
)

const (
	shortcutExt = "desktop"
	unknownName = "Unknown"
)

// IconSource resolves cached icons. *iconcache.Cache implements it.
type IconSource interface {
	Lookup(displayName, target, hint string) (string, bool)
}

// resolveFunc is swapped in tests to simulate crashing shortcut parsers.
type resolveFunc func(path, locale string) (desktop.Shortcut, error)

// Scanner walks the configured roots and produces a sorted, deduplicated
// entry list.
type Scanner struct {
	roots   []Root
	icons   IconSource
	workers int
	lang    string
	resolve resolveFunc
}

// NewScanner returns a scanner over roots. icons may be nil.
func NewScanner(roots []Root, icons IconSource, workers int, lang string) *Scanner {
	if workers <= 0 {
		workers = 1
	}
	return &Scanner{
		roots:   roots,
		icons:   icons,
		workers: workers,
		lang:    lang,
		resolve: desktop.Resolve,
	}
}

// Roots returns a copy of the roots the scanner walks.
func (s *Scanner) Roots() []Root {
	return append([]Root(nil), s.roots...)
}

// candidate is an entry plus the icon hint from its shortcut.
type candidate struct {
	entry Entry
	hint  string
}

// Scan walks all roots. It returns ctx.Err() when cancelled; a partial list
// is never returned.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	start := time.Now()
	seen := make(map[string]struct{})
	var found []candidate

	for _, root := range s.roots {
		if err := s.walk(ctx, root, func(c candidate) {
			key := strings.ToLower(c.entry.DisplayName)
			if _, dup := seen[key]; dup {
				metrics.SkippedFiles.WithLabelValues("duplicate").Inc()
				return
			}
			seen[key] = struct{}{}
			found = append(found, c)
		}); err != nil {
			return nil, err
		}
	}

	s.attachIcons(ctx, found)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(found))
	for i, c := range found {
		entries[i] = c.entry
	}
	SortEntries(entries)

	logging.Debug("Scanned %d roots in %v: %d entries", len(s.roots), time.Since(start), len(entries))
	return entries, nil
}

// SortEntries orders entries by source priority, then display name.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if pi, pj := entries[i].Source.Priority(), entries[j].Source.Priority(); pi != pj {
			return pi < pj
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
}

func (s *Scanner) walk(ctx context.Context, root Root, emit func(candidate)) error {
	dir := root.Dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	} else {
		logging.Debug("Skipping root %s: %v", root.Dir, err)
		return nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.Debug("Skipping %s: %v", path, err)
			metrics.SkippedFiles.WithLabelValues("unreadable").Inc()
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if path != dir && depth(dir, path) >= root.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if c, ok := s.visit(root, path, d); ok {
			emit(c)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (s *Scanner) visit(root Root, path string, d fs.DirEntry) (candidate, bool) {
	name := d.Name()
	if executable.IsHidden(name) {
		return candidate{}, false
	}
	if !executable.HasExtension(name, root.Extensions) {
		return candidate{}, false
	}
	if root.RequireExec {
		info, err := d.Info()
		if err != nil || !executable.IsExecutable(info.Mode()) {
			return candidate{}, false
		}
	}

	stem := executable.Stem(name)
	if executable.Excluded(stem) {
		metrics.SkippedFiles.WithLabelValues("excluded").Inc()
		return candidate{}, false
	}

	c := candidate{entry: Entry{
		Path:        path,
		Name:        strings.ToLower(stem),
		DisplayName: stem,
		Source:      root.Source,
		Target:      path,
	}}

	if executable.Ext(name) == shortcutExt {
		sc, err := s.resolveShortcut(path)
		switch {
		case err != nil:
			logging.Debug("Indexing %s as a plain file: %v", path, err)
			metrics.ShortcutFallbacks.Inc()
		case sc.Hidden:
			metrics.SkippedFiles.WithLabelValues("hidden").Inc()
			return candidate{}, false
		default:
			if sc.DisplayName != "" {
				c.entry.DisplayName = sc.DisplayName
			}
			c.entry.Target = sc.Target
			c.hint = sc.Icon
		}
	}

	if c.entry.DisplayName == "" {
		c.entry.DisplayName = unknownName
	}
	return c, true
}

func (s *Scanner) resolveShortcut(path string) (sc desktop.Shortcut, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic resolving %s: %v", path, r)
		}
	}()
	return s.resolve(path, s.lang)
}

// attachIcons looks up icons for all candidates on a worker pool. Lookups
// only write their own slot, so the order is kept.
func (s *Scanner) attachIcons(ctx context.Context, found []candidate) {
	if s.icons == nil || len(found) == 0 {
		return
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		logging.Warn("Icon pool unavailable, extracting inline: %v", err)
	} else {
		defer pool.Release()
	}

	var wg sync.WaitGroup
	for i := range found {
		if ctx.Err() != nil {
			break
		}
		c := &found[i]
		task := func() {
			defer wg.Done()
			target := c.entry.Target
			if target == "" {
				target = c.entry.Path
			}
			if p, ok := s.icons.Lookup(c.entry.DisplayName, target, c.hint); ok {
				c.entry.IconPath = p
			}
		}
		wg.Add(1)
		if pool == nil || pool.Submit(task) != nil {
			task()
		}
	}
	wg.Wait()
}
