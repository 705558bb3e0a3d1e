package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements tripdb.MetricsCollector with Prometheus
// counters and histograms.
type PrometheusCollector struct {
	opLatency      *prometheus.HistogramVec
	queries        *prometheus.CounterVec
	recordsScanned *prometheus.CounterVec
	recordsMatched *prometheus.CounterVec
	builds         *prometheus.CounterVec
	buildRecords   prometheus.Gauge
	reinits        *prometheus.CounterVec
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(namespace string, reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of tripdb operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total queries by operation, strategy and status",
		}, []string{"op", "strategy", "status"}),
		recordsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scanned_total",
			Help:      "Source records examined by queries",
		}, []string{"op"}),
		recordsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_matched_total",
			Help:      "Records that matched query filters",
		}, []string{"op"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds by status",
		}, []string{"status"}),
		buildRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_records",
			Help:      "Records indexed by the last successful build",
		}),
		reinits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reinitializations_total",
			Help:      "Index reinitializations by status",
		}, []string{"status"}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.queries, c.recordsScanned, c.recordsMatched,
		c.builds, c.buildRecords, c.reinits,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements tripdb.MetricsCollector.
func (c *PrometheusCollector) RecordBuild(records int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("build", status(err)).Observe(d.Seconds())
	c.builds.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.buildRecords.Set(float64(records))
	}
}

// RecordQuery implements tripdb.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(op, strategy string, scanned, matched int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
	c.queries.WithLabelValues(op, strategy, status(err)).Inc()
	c.recordsScanned.WithLabelValues(op).Add(float64(scanned))
	c.recordsMatched.WithLabelValues(op).Add(float64(matched))
}

// RecordReinitialize implements tripdb.MetricsCollector.
func (c *PrometheusCollector) RecordReinitialize(d time.Duration, err error) {
	c.opLatency.WithLabelValues("reinitialize", status(err)).Observe(d.Seconds())
	c.reinits.WithLabelValues(status(err)).Inc()
}
