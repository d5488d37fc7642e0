package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translation_cache_lookups_total",
			Help: "Translation cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
	providerAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_provider_attempts_total",
			Help: "NL-to-SQL provider attempts by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)
	resolveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_resolve_duration_seconds",
			Help:    "End-to-end question resolution latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_duration_seconds",
			Help:    "SQL execution latency against the local database.",
			Buckets: prometheus.DefBuckets,
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_rows_returned",
			Help:    "Row counts of successful query results.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)
	queryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_query_failures_total",
			Help: "Total number of SQL executions rejected by the engine.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheLookupsTotal,
		providerAttemptsTotal,
		resolveDurationSeconds,
		queryDurationSeconds,
		queryRowsReturned,
		queryFailuresTotal,
	)
}

func ObserveCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

func ObserveProviderAttempt(tier string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerAttemptsTotal.WithLabelValues(tier, outcome).Inc()
}

func ObserveResolve(elapsed time.Duration) {
	resolveDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveQuery(rows int, elapsed time.Duration, err error) {
	queryDurationSeconds.Observe(elapsed.Seconds())
	if err != nil {
		queryFailuresTotal.Inc()
		return
	}
	queryRowsReturned.Observe(float64(rows))
}
