package cohort

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for cohort discovery and caching.
type Metrics struct {
	DiscoveryRunsTotal   *prometheus.CounterVec
	DiscoveryDuration    prometheus.Histogram
	DiscoveryCohortCount prometheus.Gauge

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge
}

// NewMetrics creates and registers cohort metrics.
//
// Registration happens once per process; repeated calls return the same
// instance, preventing duplicate-collector panics. All metrics carry the
// "cohort_" prefix.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			DiscoveryRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cohort_discovery_runs_total",
					Help: "Total discovery runs by result",
				},
				[]string{"result"}, // "ok" or "error"
			),
			DiscoveryDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cohort_discovery_duration_seconds",
					Help:    "Wall time of discovery runs",
					Buckets: prometheus.DefBuckets,
				},
			),
			DiscoveryCohortCount: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "cohort_generation_cohorts",
					Help: "Cohort count of the latest persisted generation",
				},
			),
			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "cohort_cache_hits_total",
					Help: "Cohort cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "cohort_cache_misses_total",
					Help: "Cohort cache misses",
				},
			),
			CacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "cohort_cache_entries",
					Help: "Current cohort cache entry count",
				},
			),
		}
	})
	return globalMetrics
}
