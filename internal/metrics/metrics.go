package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marks"

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit",
		},
		[]string{"surface"}, // bookmarks, tags, days, ops
	)

	// Search Metrics
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of engine operations",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation"}, // search, tags, day, shortid
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of bookmarks matched by a search, before pagination",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	TagCloudCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagcloud_cache_total",
			Help:      "Tag cloud cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Datastore Metrics
	BookmarksLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bookmarks_loaded",
			Help:      "Number of bookmarks held in memory",
		},
	)

	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datastore_reloads_total",
			Help:      "Datastore reloads by trigger and outcome",
		},
		[]string{"trigger", "result"}, // start/tick/manual/watch, ok/error/unchanged
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookmark_mutations_total",
			Help:      "Bookmark mutations by operation and outcome",
		},
		[]string{"operation", "result"}, // add/update/delete, ok/error
	)
)
