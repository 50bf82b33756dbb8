package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xADE/ade-launchd/internal/indexer/executable"
	"github.com/0xADE/ade-launchd/internal/logging"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 2 * time.Second

// Rescanner starts a scan. *Store implements it.
type Rescanner interface {
	StartScan(ctx context.Context) <-chan struct{}
}

// Watcher rescans when files under the scan roots change.
type Watcher struct {
	target   Rescanner
	roots    []Root
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches every existing root directory and its subdirectories
// down to the root's scan depth.
func NewWatcher(target Rescanner, roots []Root, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		target:   target,
		roots:    roots,
		debounce: debounce,
		watcher:  fw,
	}
	for _, root := range roots {
		if dir, err := filepath.EvalSymlinks(root.Dir); err == nil {
			w.addTree(dir, root.MaxDepth)
		}
	}
	return w, nil
}

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string {
	return w.watcher.WatchList()
}

func (w *Watcher) addTree(dir string, maxDepth int) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && (executable.IsHidden(path) || depth(dir, path) >= maxDepth) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.Debug("Cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) rootFor(path string) (Root, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root.Dir, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return root, true
		}
	}
	return Root{}, false
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || executable.IsHidden(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					if root, ok := w.rootFor(event.Name); ok && depth(root.Dir, event.Name) < root.MaxDepth {
						w.addTree(event.Name, root.MaxDepth-depth(root.Dir, event.Name))
					}
				}
			}
			logging.Debug("Change detected: %s", event)
			fire = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)

		case <-fire:
			fire = nil
			logging.Info("Application directories changed, rescanning")
			w.target.StartScan(ctx)
		}
	}
}
