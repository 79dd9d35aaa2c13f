package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microscope_files_processed_total",
		Help: "Files a pass finished with, by final state.",
	}, []string{"pass", "state"})

	FileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microscope_file_seconds",
		Help:    "Time spent analyzing a single file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microscope_pass_seconds",
		Help:    "Time spent on a whole pass over the candidate files.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microscope_diagnostics_total",
		Help: "Diagnostics reported, by kind.",
	}, []string{"kind"})

	OracleQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microscope_oracle_queries_total",
		Help: "Symbol existence queries, by query kind and outcome.",
	}, []string{"query", "result"})

	OracleCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microscope_oracle_cache_lookups_total",
		Help: "Memoized oracle lookups, by hit or miss.",
	}, []string{"result"})

	OracleThrottleSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microscope_oracle_throttle_seconds_total",
		Help: "Time oracle queries spent waiting for the rate limiter.",
	})

	IndexSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "microscope_index_symbols",
		Help: "Number of symbols in the project index.",
	})

	IndexBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "microscope_index_build_seconds",
		Help:    "Time spent building the project symbol index.",
		Buckets: prometheus.DefBuckets,
	})

	NamespaceFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microscope_namespace_fixes_total",
		Help: "Namespace rewrites attempted, by outcome.",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microscope_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
