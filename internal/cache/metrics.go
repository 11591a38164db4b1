package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts valid entries served, by namespace.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// cacheMisses counts absent or expired lookups, by namespace.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_cache_misses_total",
			Help: "Total number of cache misses (absent or expired)",
		},
		[]string{"namespace"},
	)

	// cacheErrors counts storage-layer failures absorbed by the store.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_cache_errors_total",
			Help: "Total number of cache storage errors",
		},
		[]string{"operation"}, // "get", "get_many", "put", "sweep"
	)

	// cacheSweeps counts entries removed by expiry sweeps, by namespace.
	cacheSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_cache_swept_entries_total",
			Help: "Total number of expired entries removed by sweeps",
		},
		[]string{"namespace"},
	)
)
