package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/metrics"
)

// EntryScanner produces a complete entry list. *Scanner implements it.
type EntryScanner interface {
	Scan(ctx context.Context) ([]Entry, error)
}

// Status is a consistent view of the store.
type Status struct {
	Indexing bool
	Count    int
	LastScan time.Time // zero until a scan has been published
}

// Store holds the published index. The entry list is replaced as a whole;
// readers never observe a partially built list.
type Store struct {
	scanner   EntryScanner
	cachePath string

	mu       sync.RWMutex
	entries  []Entry
	indexing bool
	done     chan struct{}
	lastScan time.Time
	gen      uint64 // bumped on every published scan

	writeMu sync.Mutex
	written uint64 // generation of the snapshot on disk

	running sync.WaitGroup
}

// NewStore creates an empty store. cachePath is where the snapshot is
// persisted; an empty path disables persistence.
func NewStore(scanner EntryScanner, cachePath string) *Store {
	return &Store{
		scanner:   scanner,
		cachePath: cachePath,
	}
}

// LoadCache publishes the persisted snapshot. It reports false, leaving the
// store untouched, when the file is missing or invalid.
func (s *Store) LoadCache() bool {
	if s.cachePath == "" {
		return false
	}
	entries, err := loadSnapshot(s.cachePath)
	if err != nil {
		logging.Debug("No usable index cache at %s: %v", s.cachePath, err)
		metrics.CacheLoads.WithLabelValues("miss").Inc()
		return false
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	metrics.CacheLoads.WithLabelValues("hit").Inc()
	metrics.IndexedEntries.Set(float64(len(entries)))
	logging.Info("Loaded %d entries from %s", len(entries), s.cachePath)
	return true
}

// StartScan starts a background scan unless one is already running. The
// returned channel is closed once the scan finished, published or not.
func (s *Store) StartScan(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	if s.indexing {
		done := s.done
		s.mu.Unlock()
		return done
	}
	done := make(chan struct{})
	s.indexing = true
	s.done = done
	s.mu.Unlock()

	metrics.Indexing.Set(1)
	s.running.Add(1)
	go s.run(ctx, done)
	return done
}

func (s *Store) run(ctx context.Context, done chan struct{}) {
	defer s.running.Done()
	start := time.Now()
	entries, err := s.scan(ctx)

	var gen uint64
	s.mu.Lock()
	if err == nil {
		s.entries = entries
		s.lastScan = time.Now()
		s.gen++
		gen = s.gen
	}
	s.indexing = false
	s.done = nil
	close(done)
	s.mu.Unlock()

	metrics.Indexing.Set(0)
	if err != nil {
		logging.Warn("Scan discarded: %v", err)
		metrics.ScansTotal.WithLabelValues("cancelled").Inc()
		return
	}

	metrics.ScansTotal.WithLabelValues("published").Inc()
	metrics.ScanDuration.Set(time.Since(start).Seconds())
	metrics.IndexedEntries.Set(float64(len(entries)))
	logging.Info("Indexed %d entries in %v", len(entries), time.Since(start).Round(time.Millisecond))

	if s.cachePath != "" {
		s.persist(gen, entries)
	}
}

// persist writes the snapshot of scan gen unless a later scan already
// wrote its own. It reports whether the file was written.
func (s *Store) persist(gen uint64, entries []Entry) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if gen <= s.written {
		logging.Debug("Skipping stale index cache write (scan %d, on disk %d)", gen, s.written)
		metrics.CacheWrites.WithLabelValues("stale").Inc()
		return false
	}
	if err := saveSnapshot(s.cachePath, entries); err != nil {
		logging.Warn("Failed to write index cache: %v", err)
		metrics.CacheWrites.WithLabelValues("error").Inc()
		return false
	}
	s.written = gen
	metrics.CacheWrites.WithLabelValues("ok").Inc()
	return true
}

func (s *Store) scan(ctx context.Context) (entries []Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner panic: %v", r)
		}
	}()
	return s.scanner.Scan(ctx)
}

// Snapshot returns the published entry list. The slice is shared and must
// not be modified.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// IsIndexing returns whether a scan is in progress
func (s *Store) IsIndexing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexing
}

// Count returns the number of published entries
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Status returns the indexing flag and count read together.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Indexing: s.indexing,
		Count:    len(s.entries),
		LastScan: s.lastScan,
	}
}

// Wait blocks until no scan is running or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for a running scan, including its snapshot write. Cancel the
// scan context first to make it return promptly.
func (s *Store) Close() {
	s.running.Wait()
}
