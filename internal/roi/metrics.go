package roi

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for ROI tracking.
type Metrics struct {
	RecordsTotal  prometheus.Counter
	RejectedTotal prometheus.Counter
}

// NewMetrics creates and registers ROI metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RecordsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "roi_records_total",
					Help: "ROI records appended to the trajectory log",
				},
			),
			RejectedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "roi_records_rejected_total",
					Help: "Outcomes rejected for invalid metrics",
				},
			),
		}
	})
	return globalMetrics
}
