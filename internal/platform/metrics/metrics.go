package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventsAccepted prometheus.Counter
	EventsRejected *prometheus.CounterVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_events_accepted_total",
			Help: "Total number of submissions that passed signature verification",
		}),
		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_events_rejected_total",
			Help: "Total number of rejected submissions by internal reason",
		}, []string{"reason"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_report_cache_hits_total",
			Help: "Report cache hits by report kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_report_cache_misses_total",
			Help: "Report cache misses by report kind",
		}, []string{"kind"}),
	}
}
