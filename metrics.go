package vortex

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics using plain
// atomics so a reactor goroutine never contends on a lock to record them.
// An Engine keeps one Metrics shared by all of its shards.
type Metrics struct {
	UpsertOps atomic.Uint64
	SearchOps atomic.Uint64
	FlushOps  atomic.Uint64

	UpsertErrors atomic.Uint64
	SearchErrors atomic.Uint64
	FlushErrors  atomic.Uint64

	WALBytesWritten atomic.Uint64
	BatchesFlushed  atomic.Uint64
	VectorsBatched  atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyBuckets[i] is the cumulative count of operations with latency
	// <= LatencyBuckets[i] nanoseconds.
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordUpsert records an upsert request.
func (m *Metrics) RecordUpsert(latencyNs uint64, success bool) {
	m.UpsertOps.Add(1)
	if !success {
		m.UpsertErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordSearch records a search request.
func (m *Metrics) RecordSearch(latencyNs uint64, success bool) {
	m.SearchOps.Add(1)
	if !success {
		m.SearchErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordFlush records a batch/WAL flush, including the number of vectors
// coalesced into it and the bytes written to the WAL.
func (m *Metrics) RecordFlush(vectors int, walBytes uint64, latencyNs uint64, success bool) {
	m.FlushOps.Add(1)
	m.BatchesFlushed.Add(1)
	m.VectorsBatched.Add(uint64(vectors))
	m.WALBytesWritten.Add(walBytes)
	if !success {
		m.FlushErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordQueueDepth records the current connection/request queue depth.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop records the stop time; uptime and rates are then measured up to it.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	UpsertOps uint64
	SearchOps uint64
	FlushOps  uint64

	UpsertErrors uint64
	SearchErrors uint64
	FlushErrors  uint64

	WALBytesWritten uint64
	BatchesFlushed  uint64
	VectorsBatched  uint64
	AvgBatchSize    float64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	UpsertQPS float64
	SearchQPS float64
	TotalOps  uint64
	ErrorRate float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		UpsertOps:       m.UpsertOps.Load(),
		SearchOps:       m.SearchOps.Load(),
		FlushOps:        m.FlushOps.Load(),
		UpsertErrors:    m.UpsertErrors.Load(),
		SearchErrors:    m.SearchErrors.Load(),
		FlushErrors:     m.FlushErrors.Load(),
		WALBytesWritten: m.WALBytesWritten.Load(),
		BatchesFlushed:  m.BatchesFlushed.Load(),
		VectorsBatched:  m.VectorsBatched.Load(),
		MaxQueueDepth:   m.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.UpsertOps + snap.SearchOps

	if snap.BatchesFlushed > 0 {
		snap.AvgBatchSize = float64(snap.VectorsBatched) / float64(snap.BatchesFlushed)
	}

	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(queueDepthCount)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.UpsertQPS = float64(snap.UpsertOps) / uptimeSeconds
		snap.SearchQPS = float64(snap.SearchOps) / uptimeSeconds
	}

	totalErrors := snap.UpsertErrors + snap.SearchErrors + snap.FlushErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Intended for tests.
func (m *Metrics) Reset() {
	m.UpsertOps.Store(0)
	m.SearchOps.Store(0)
	m.FlushOps.Store(0)
	m.UpsertErrors.Store(0)
	m.SearchErrors.Store(0)
	m.FlushErrors.Store(0)
	m.WALBytesWritten.Store(0)
	m.BatchesFlushed.Store(0)
	m.VectorsBatched.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection alongside the hot-path
// atomic Metrics struct (see internal/metrics for the Prometheus-backed
// implementation).
type Observer interface {
	ObserveUpsert(latencyNs uint64, success bool)
	ObserveSearch(latencyNs uint64, success bool)
	ObserveFlush(vectors int, walBytes uint64, latencyNs uint64, success bool)
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveUpsert(uint64, bool)                 {}
func (NoOpObserver) ObserveSearch(uint64, bool)                  {}
func (NoOpObserver) ObserveFlush(int, uint64, uint64, bool)      {}
func (NoOpObserver) ObserveQueueDepth(uint32)                    {}

// MetricsObserver implements Observer using the built-in Metrics struct.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveUpsert(latencyNs uint64, success bool) {
	o.metrics.RecordUpsert(latencyNs, success)
}

func (o *MetricsObserver) ObserveSearch(latencyNs uint64, success bool) {
	o.metrics.RecordSearch(latencyNs, success)
}

func (o *MetricsObserver) ObserveFlush(vectors int, walBytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordFlush(vectors, walBytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
