package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	uploads    *prometheus.CounterVec
	deletes    *prometheus.CounterVec
	orphans    *prometheus.CounterVec
	operations *prometheus.CounterVec
	swept      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanity",
			Name:      "media_uploads_total",
			Help:      "Media uploads by policy and outcome.",
		}, []string{"policy", "outcome"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanity",
			Name:      "media_deletes_total",
			Help:      "Blob delete attempts by outcome.",
		}, []string{"outcome"}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanity",
			Name:      "orphaned_blobs_total",
			Help:      "Blobs left without a referencing record, by reason.",
		}, []string{"reason"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanity",
			Name:      "lifecycle_operations_total",
			Help:      "Lifecycle operations by resource kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "humanity",
			Name:      "sweeper_blobs_total",
			Help:      "Blobs handled by the cleanup sweeper, by action.",
		}, []string{"action"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads, m.deletes, m.orphans, m.operations, m.swept,
	)
	return m
}

// Handler returns an http.Handler for Prometheus scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Upload(policy, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) Delete(outcome string) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Orphan(reason string) {
	if m == nil {
		return
	}
	m.orphans.WithLabelValues(reason).Inc()
}

func (m *Metrics) Operation(kind, op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, op, outcome).Inc()
}

func (m *Metrics) Swept(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.swept.WithLabelValues(action).Add(float64(n))
}
