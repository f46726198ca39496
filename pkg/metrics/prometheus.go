package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks     *prometheus.CounterVec
	lastQuote *prometheus.GaugeVec
	clusters  *prometheus.GaugeVec
	alerts    *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New registers the sniper collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_ticks_total",
				Help: "Ticks accepted per feed",
			},
			[]string{"feed"},
		),
		lastQuote: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sniper_last_quote",
				Help: "Last quote seen per feed",
			},
			[]string{"feed"},
		),
		clusters: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sniper_clusters",
				Help: "Clusters in the current window per feed",
			},
			[]string{"feed"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_alerts_total",
				Help: "Alerts fired per feed and digit",
			},
			[]string{"feed", "digit"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_errors_total",
				Help: "Errors by type",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniper_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(feed string) {
	r.ticks.WithLabelValues(feed).Inc()
}

func (r *Recorder) RecordLastQuote(feed string, quote float64) {
	r.lastQuote.WithLabelValues(feed).Set(quote)
}

func (r *Recorder) RecordClusters(feed string, n int) {
	r.clusters.WithLabelValues(feed).Set(float64(n))
}

func (r *Recorder) RecordAlert(feed string, digit int) {
	r.alerts.WithLabelValues(feed, strconv.Itoa(digit)).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordTick(string) {}
func (Nop) RecordLastQuote(string, float64) {}
func (Nop) RecordClusters(string, int) {}
func (Nop) RecordAlert(string, int) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
