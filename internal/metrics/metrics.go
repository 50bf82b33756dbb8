package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Indexer metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_scans_total",
			Help: "Total number of filesystem scans",
		},
		[]string{"status"}, // "published", "cancelled"
	)

	ScanDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ade_launchd_last_scan_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)

	IndexedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ade_launchd_indexed_entries",
			Help: "Number of entries in the published index",
		},
	)

	Indexing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ade_launchd_indexing",
			Help: "1 while a scan is in progress",
		},
	)

	SkippedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_skipped_files_total",
			Help: "Files skipped during scans by reason",
		},
		[]string{"reason"}, // "excluded", "duplicate", "hidden", "unreadable"
	)

	ShortcutFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ade_launchd_shortcut_fallbacks_total",
			Help: "Shortcuts that failed to resolve and were indexed as plain files",
		},
	)
)

// Snapshot cache metrics
var (
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_cache_loads_total",
			Help: "Snapshot cache load attempts by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_cache_writes_total",
			Help: "Snapshot cache writes by result",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)
)

// Icon metrics
var (
	IconLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_icon_lookups_total",
			Help: "Icon cache lookups by result",
		},
		[]string{"result"}, // "cached", "extracted", "missing"
	)
)

// Search and launch metrics
var (
	SearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ade_launchd_searches_total",
			Help: "Total number of searches evaluated",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ade_launchd_search_duration_seconds",
			Help:    "Search evaluation time in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	LaunchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ade_launchd_launches_total",
			Help: "Launch requests by result",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)
)
