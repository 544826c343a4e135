package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is a Recorder backed by Prometheus collectors. All
// collectors are registered against the registry passed at construction, so
// callers can expose or inspect them as they see fit.
type PrometheusRecorder struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	tablesCopied  *prometheus.CounterVec
	rowsCopied    *prometheus.CounterVec
	tablesSkipped *prometheus.CounterVec
	viewsTotal    *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder and registers its
// collectors with the given registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishi_consolidation_runs_total",
			Help: "Total number of consolidation runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "krishi_consolidation_run_duration_seconds",
			Help:    "Duration of consolidation runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		tablesCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishi_tables_copied_total",
			Help: "Total number of tables materialized into the warehouse.",
		}, []string{"source"}),
		rowsCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishi_rows_copied_total",
			Help: "Total number of rows copied into the warehouse.",
		}, []string{"source"}),
		tablesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishi_tables_skipped_total",
			Help: "Total number of tables skipped due to per-item failures.",
		}, []string{"source", "reason"}),
		viewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krishi_views_total",
			Help: "Total number of view creations by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.tablesCopied,
		r.rowsCopied,
		r.tablesSkipped,
		r.viewsTotal,
	)
	return r
}

func (r *PrometheusRecorder) RecordRunStart(string) {}

func (r *PrometheusRecorder) RecordRunEnd(_ string, duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordTableCopied(source, _ string, rows int64) {
	r.tablesCopied.WithLabelValues(source).Inc()
	r.rowsCopied.WithLabelValues(source).Add(float64(rows))
}

func (r *PrometheusRecorder) RecordTableSkipped(source, _ string, reason string) {
	r.tablesSkipped.WithLabelValues(source, reason).Inc()
}

func (r *PrometheusRecorder) RecordViewCreated(string) {
	r.viewsTotal.WithLabelValues("created").Inc()
}

func (r *PrometheusRecorder) RecordViewFailed(string) {
	r.viewsTotal.WithLabelValues("failed").Inc()
}
