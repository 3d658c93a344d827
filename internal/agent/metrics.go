package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberprof/ember/internal/hotspot"
)

// Metrics exposes the agent's Prometheus metrics on a private registry.
// Profile gauges read the live profile, so they reset together with it in
// interval mode; the counters are monotonic over the agent's lifetime.
type Metrics struct {
	registry *prometheus.Registry

	ReportsTotal    prometheus.Counter
	IngestedSamples prometheus.Counter
	StoredSnapshots prometheus.Counter
}

// NewMetrics builds the metric set for profile.
func NewMetrics(profile *hotspot.Profile) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ember",
			Name:      "reports_total",
			Help:      "Report cycles completed since the agent started.",
		}),
		IngestedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ember",
			Name:      "ingested_samples_total",
			Help:      "Samples accepted over the HTTP ingest endpoint.",
		}),
		StoredSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ember",
			Name:      "stored_snapshots_total",
			Help:      "Snapshots persisted to local storage.",
		}),
	}

	m.registry.MustRegister(
		m.ReportsTotal,
		m.IngestedSamples,
		m.StoredSnapshots,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "profile",
			Name:      "samples",
			Help:      "Samples recorded in the current profile epoch.",
		}, func() float64 { return float64(profile.Total()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "profile",
			Name:      "tracked_keys",
			Help:      "Distinct code units currently tracked.",
		}, func() float64 { return float64(profile.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "profile",
			Name:      "capacity",
			Help:      "Maximum number of code units tracked at once.",
		}, func() float64 { return float64(profile.Capacity()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "profile",
			Name:      "evictions",
			Help:      "Displacements in the current profile epoch.",
		}, func() float64 { return float64(profile.Evictions()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the /metrics HTTP handler for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
