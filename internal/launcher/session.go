// Package launcher drives a launcher session: it loads the cached index,
// keeps it fresh, evaluates queries and hands entries to the desktop.
package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/metrics"
	"github.com/0xADE/ade-launchd/internal/search"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateUninitialized State = iota
	StateCacheHit            // cached list shown, refresh scan running
	StateCacheMiss           // no cache, first scan running
	StateScanning            // scan running without cache involvement
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCacheHit:
		return "cache-hit"
	case StateCacheMiss:
		return "cache-miss"
	case StateScanning:
		return "scanning"
	case StateIdle:
		return "idle"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Index is the part of *indexer.Store a session uses.
type Index interface {
	LoadCache() bool
	StartScan(ctx context.Context) <-chan struct{}
	Snapshot() []indexer.Entry
	Status() indexer.Status
}

// Counter records launches. *runindex.RunIndex implements it.
type Counter interface {
	Increment(path string) error
}

// Options configure a session.
type Options struct {
	EnableCache bool
	// MaxResults returns the display limit; nil or non-positive means no
	// limit beyond search.MaxResults. It is called per evaluation so that
	// settings reloads apply.
	MaxResults func() int
	// Counter is optional.
	Counter Counter
}

// Status is a snapshot of the session and its index.
type Status struct {
	State    State
	Indexing bool
	Count    int
	LastScan time.Time
}

// Session owns the query state of one launcher. It holds no index data.
type Session struct {
	index  Index
	opener Opener
	opts   Options

	mu      sync.Mutex
	ctx     context.Context
	started bool
	state   State
	query   string
	gen     uint64
	results []search.Result
	lastErr error
	updates chan []search.Result
}

// NewSession returns an uninitialized session.
func NewSession(index Index, opener Opener, opts Options) *Session {
	return &Session{
		index:   index,
		opener:  opener,
		opts:    opts,
		ctx:     context.Background(),
		updates: make(chan []search.Result, 1),
	}
}

// Start loads the cache when enabled and starts the first scan. Calls after
// the first are no-ops. ctx bounds the lifetime of background scans.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	next := StateScanning
	if s.opts.EnableCache {
		if s.index.LoadCache() {
			next = StateCacheHit
		} else {
			next = StateCacheMiss
		}
	}
	s.setState(next)
	if next == StateCacheHit {
		s.refresh()
	}

	done := s.index.StartScan(ctx)
	go s.awaitScan(ctx, done)
}

// Rescan starts a scan unless one is running. The session returns to
// StateIdle once it completes.
func (s *Session) Rescan() <-chan struct{} {
	s.mu.Lock()
	ctx := s.ctx
	s.state = StateScanning
	s.mu.Unlock()

	done := s.index.StartScan(ctx)
	go s.awaitScan(ctx, done)
	return done
}

func (s *Session) awaitScan(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	s.mu.Lock()
	if !s.index.Status().Indexing {
		s.state = StateIdle
	}
	s.mu.Unlock()
	logging.Debug("Scan finished, refreshing results")
	s.refresh()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the session state together with the index status.
func (s *Session) Status() Status {
	st := s.index.Status()
	return Status{State: s.State(), Indexing: st.Indexing, Count: st.Count, LastScan: st.LastScan}
}

// SetQuery records q and evaluates it in the background. Results of older
// queries that finish late are dropped.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	s.refresh()
}

// Query returns the current query.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func (s *Session) refresh() {
	s.mu.Lock()
	s.gen++
	gen, q := s.gen, s.query
	s.mu.Unlock()

	go s.evaluate(gen, q)
}

func (s *Session) evaluate(gen uint64, q string) {
	results := s.limit(search.Search(q, s.index.Snapshot()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.results = results

	// Latest wins: drop an unread update before sending.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- results
}

// Results returns the latest evaluated results of the current query.
func (s *Session) Results() []search.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Updates delivers evaluated results. Only the most recent unread value is
// kept.
func (s *Session) Updates() <-chan []search.Result {
	return s.updates
}

// Search evaluates q once without touching the session query. It never
// waits for a running scan.
func (s *Session) Search(ctx context.Context, q string) ([]search.Result, error) {
	ch := make(chan []search.Result, 1)
	go func() {
		ch <- s.limit(search.Search(q, s.index.Snapshot()))
	}()
	select {
	case results := <-ch:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) limit(results []search.Result) []search.Result {
	if s.opts.MaxResults == nil {
		return results
	}
	if n := s.opts.MaxResults(); n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}

// Launch opens entry. A failure is returned and kept for LastLaunchError;
// the session state is not changed.
func (s *Session) Launch(entry indexer.Entry) error {
	if err := s.opener.Open(entry); err != nil {
		err = fmt.Errorf("failed to launch %s: %w", entry.DisplayName, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		metrics.LaunchesTotal.WithLabelValues("error").Inc()
		logging.Warn("%v", err)
		return err
	}

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	metrics.LaunchesTotal.WithLabelValues("ok").Inc()
	logging.Info("Launched %s (%s)", entry.DisplayName, entry.Path)

	if s.opts.Counter != nil {
		if err := s.opts.Counter.Increment(entry.Path); err != nil {
			logging.Warn("Failed to count launch of %s: %v", entry.Path, err)
		}
	}
	return nil
}

// Entry returns the published entry at path.
func (s *Session) Entry(path string) (indexer.Entry, bool) {
	for _, e := range s.index.Snapshot() {
		if e.Path == path {
			return e, true
		}
	}
	return indexer.Entry{}, false
}

// LastLaunchError returns the error of the most recent launch, nil when it
// succeeded.
func (s *Session) LastLaunchError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
