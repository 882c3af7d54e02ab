// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchBatchesTotal    *prometheus.CounterVec
	ObservationsFetched  *prometheus.CounterVec
	VendorCallLatency    *prometheus.HistogramVec
	FieldsDegraded       prometheus.Counter

	// Universe metrics
	MembershipLookupErrors prometheus.Counter
	UniverseSize           prometheus.Gauge

	// Panel metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	PanelRowsBuilt    prometheus.Gauge
	PanelRowsKept     prometheus.Gauge
	PanelRowsDropped  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "panel_pipeline"
	}

	return &Metrics{
		FetchBatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "batches_total",
			Help:      "Total number of vendor batches by kind and status",
		}, []string{"kind", "status"}),
		ObservationsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "observations_total",
			Help:      "Total number of raw observations fetched by kind",
		}, []string{"kind"}),
		VendorCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "vendor_call_latency_seconds",
			Help:      "Vendor batch call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		FieldsDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "fields_degraded_total",
			Help:      "Total number of schema degradations applied to fundamental requests",
		}),

		MembershipLookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "universe",
			Name:      "membership_lookup_errors_total",
			Help:      "Total number of failed monthly membership lookups",
		}),
		UniverseSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "universe",
			Name:      "entities",
			Help:      "Number of distinct entities in the resolved universe",
		}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "runs_total",
			Help:      "Total number of assembly runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "run_duration_seconds",
			Help:      "Assembly run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		PanelRowsBuilt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "rows_built",
			Help:      "Rows in the wide panel before filtering",
		}),
		PanelRowsKept: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "rows_kept",
			Help:      "Rows surviving the documented filters",
		}),
		PanelRowsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped by filter reason",
		}, []string{"reason"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful assembly run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetchBatch records one finished vendor batch.
func RecordFetchBatch(kind, status string, seconds float64, observations int) {
	DefaultMetrics.FetchBatchesTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.VendorCallLatency.WithLabelValues(kind).Observe(seconds)
	if observations > 0 {
		DefaultMetrics.ObservationsFetched.WithLabelValues(kind).Add(float64(observations))
	}
}

// RecordFieldDegradation counts one schema degradation.
func RecordFieldDegradation() {
	DefaultMetrics.FieldsDegraded.Inc()
}

// RecordMembershipError counts one failed monthly membership lookup.
func RecordMembershipError() {
	DefaultMetrics.MembershipLookupErrors.Inc()
}

// UpdateUniverseSize sets the resolved universe gauge.
func UpdateUniverseSize(entities int) {
	DefaultMetrics.UniverseSize.Set(float64(entities))
}

// RecordRun records one assembly run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(status).Observe(durationSeconds)
	if status == "ok" {
		DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// UpdatePanelRows sets the row gauges after a run.
func UpdatePanelRows(built, kept int) {
	DefaultMetrics.PanelRowsBuilt.Set(float64(built))
	DefaultMetrics.PanelRowsKept.Set(float64(kept))
}

// RecordRowsDropped counts filtered rows by reason.
func RecordRowsDropped(reason string, n int) {
	if n > 0 {
		DefaultMetrics.PanelRowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
