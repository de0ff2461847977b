// Package metrics declares the Prometheus instrumentation the aggregator
// exposes. It is instrumentation only, not a metrics service: the embedding
// process mounts promhttp.Handler() against Registry itself, mirroring the
// teacher's system_health_logging.go gauges but on a dedicated registry
// rather than the global default one, so tests never collide across
// packages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the pipeline updates.
type Metrics struct {
	Registry *prometheus.Registry

	QueueDepth              *prometheus.GaugeVec
	BatchesSubmittedTotal   prometheus.Counter
	AdmissionRejectedTotal  *prometheus.CounterVec
	RollupBuildDurationSecs prometheus.Histogram
}

// New builds a fresh, independently registered Metrics bundle.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of items currently waiting in a pipeline queue.",
		}, []string{"queue"}),
		BatchesSubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batches_submitted_total",
			Help: "Number of rollup batches submitted to the chain adapter.",
		}),
		AdmissionRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_rejected_total",
			Help: "Number of transactions rejected at admission, by reason.",
		}, []string{"reason"}),
		RollupBuildDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollup_build_duration_seconds",
			Help:    "Wall-clock time spent building a rollup witness.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.QueueDepth, m.BatchesSubmittedTotal, m.AdmissionRejectedTotal, m.RollupBuildDurationSecs)
	return m
}

// SetQueueDepth records the current depth of the named queue ("tx" or
// "state").
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordAdmissionRejected increments the rejection counter for reason, the
// ErrKind string of the rejecting error.
func (m *Metrics) RecordAdmissionRejected(reason string) {
	m.AdmissionRejectedTotal.WithLabelValues(reason).Inc()
}
