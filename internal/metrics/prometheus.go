// Package metrics adapts the engine's Observer callbacks onto Prometheus
// collectors, so a shard's upsert/search/flush activity and queue depth
// can be scraped without the engine or root packages importing
// client_golang themselves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements the same Observe* method set the engine
// and root packages expect from an Observer, backed by Prometheus
// counters/histograms/gauges registered under the vortex_ namespace.
type PrometheusObserver struct {
	opLatency   *prometheus.HistogramVec
	opErrors    *prometheus.CounterVec
	opTotal     *prometheus.CounterVec
	walBytes    prometheus.Counter
	batchSize   prometheus.Histogram
	queueDepth  prometheus.Gauge
}

// NewPrometheusObserver creates collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose metrics via the default
// /metrics handler.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vortex",
			Name:      "op_latency_seconds",
			Help:      "Latency of shard operations by kind.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 8),
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vortex",
			Name:      "op_errors_total",
			Help:      "Count of failed shard operations by kind.",
		}, []string{"op"}),
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vortex",
			Name:      "op_total",
			Help:      "Count of completed shard operations by kind.",
		}, []string{"op"}),
		walBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vortex",
			Name:      "wal_bytes_written_total",
			Help:      "Total bytes appended to the write-ahead log.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vortex",
			Name:      "batch_vectors",
			Help:      "Number of vectors applied per group-commit flush.",
			Buckets:   prometheus.LinearBuckets(1, 16, 8),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vortex",
			Name:      "completion_queue_depth",
			Help:      "Most recently observed completion queue depth.",
		}),
	}

	reg.MustRegister(o.opLatency, o.opErrors, o.opTotal, o.walBytes, o.batchSize, o.queueDepth)
	return o
}

func (o *PrometheusObserver) observe(op string, latencyNs uint64, success bool) {
	o.opTotal.WithLabelValues(op).Inc()
	o.opLatency.WithLabelValues(op).Observe(float64(latencyNs) / 1e9)
	if !success {
		o.opErrors.WithLabelValues(op).Inc()
	}
}

// ObserveUpsert records one upsert operation's outcome.
func (o *PrometheusObserver) ObserveUpsert(latencyNs uint64, success bool) {
	o.observe("upsert", latencyNs, success)
}

// ObserveSearch records one search operation's outcome.
func (o *PrometheusObserver) ObserveSearch(latencyNs uint64, success bool) {
	o.observe("search", latencyNs, success)
}

// ObserveFlush records one group-commit flush's outcome.
func (o *PrometheusObserver) ObserveFlush(vectors int, walBytes uint64, latencyNs uint64, success bool) {
	o.observe("flush", latencyNs, success)
	o.walBytes.Add(float64(walBytes))
	o.batchSize.Observe(float64(vectors))
}

// ObserveQueueDepth records the most recent completion queue depth sample.
func (o *PrometheusObserver) ObserveQueueDepth(depth uint32) {
	o.queueDepth.Set(float64(depth))
}
