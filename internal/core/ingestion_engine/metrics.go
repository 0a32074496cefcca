package ingestion_engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the extraction pool.
//
// Metrics:
//   - docbundle_extractions_total{format,outcome} - extractions by result
//   - docbundle_extraction_duration_seconds{format} - time spent inside a runtime
//   - docbundle_extractions_in_flight - accepted requests not yet replied to
//   - docbundle_stale_completions_total - completions discarded by version check
type Metrics struct {
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	InFlight           prometheus.Gauge
	StaleCompletions   prometheus.Counter
}

// NewMetrics registers the pool metrics on reg.
// A nil registerer gets a private registry, which keeps tests free of
// duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbundle_extractions_total",
				Help: "Total number of extraction requests by format and outcome",
			},
			[]string{"format", "outcome"}, // outcome: "ok", "error", "timeout"
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docbundle_extraction_duration_seconds",
				Help:    "Duration of a single extraction in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "docbundle_extractions_in_flight",
			Help: "Number of accepted extraction requests awaiting a reply",
		}),
		StaleCompletions: f.NewCounter(prometheus.CounterOpts{
			Name: "docbundle_stale_completions_total",
			Help: "Number of completions discarded because a newer upload superseded them",
		}),
	}
}

func (m *Metrics) observe(format, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(format, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(format).Observe(seconds)
}

func (m *Metrics) inFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}

func (m *Metrics) stale() {
	if m == nil {
		return
	}
	m.StaleCompletions.Inc()
}
