package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsFetched     *prometheus.CounterVec
	snapshotsStored *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg, mostly for tests.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rowsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchinsight_rows_fetched_total",
				Help: "Performance rows fetched from Search Console",
			},
			[]string{"site"},
		),
		snapshotsStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchinsight_snapshots_stored_total",
				Help: "Daily snapshots written to a backend",
			},
			[]string{"backend", "site"},
		),
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchinsight_recommendations_total",
				Help: "Recommendations generated by type",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchinsight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchinsight_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRowsFetched(site string, n int) {
	r.rowsFetched.WithLabelValues(site).Add(float64(n))
}

func (r *Recorder) RecordSnapshotStored(backend, site string) {
	r.snapshotsStored.WithLabelValues(backend, site).Inc()
}

func (r *Recorder) RecordRecommendations(kind string, n int) {
	r.recommendations.WithLabelValues(kind).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
