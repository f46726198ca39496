package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics counts display API outcomes per endpoint.
type APIMetrics struct {
	Latency  *prometheus.HistogramVec
	Errors   *prometheus.CounterVec
	Viewers  *prometheus.GaugeVec
	Switches *prometheus.CounterVec
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	f := promauto.With(reg)
	return &APIMetrics{
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sniper",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of display API endpoints",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sniper",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by display API endpoint and code",
		}, []string{"endpoint", "code"}),
		Viewers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sniper",
			Subsystem: "api",
			Name:      "board_viewers",
			Help:      "Open board websocket streams per feed",
		}, []string{"feed"}),
		Switches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sniper",
			Subsystem: "api",
			Name:      "feed_changes_total",
			Help:      "Feed activations, deactivations and selections",
		}, []string{"action"}),
	}
}
