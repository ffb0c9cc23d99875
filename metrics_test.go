package vortex

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordUpsert(1_000_000, true)
	m.RecordSearch(2_000_000, true)
	m.RecordUpsert(500_000, false)

	snap = m.Snapshot()

	if snap.UpsertOps != 2 {
		t.Errorf("expected 2 upsert ops, got %d", snap.UpsertOps)
	}
	if snap.SearchOps != 1 {
		t.Errorf("expected 1 search op, got %d", snap.SearchOps)
	}
	if snap.UpsertErrors != 1 {
		t.Errorf("expected 1 upsert error, got %d", snap.UpsertErrors)
	}
	if snap.SearchErrors != 0 {
		t.Errorf("expected 0 search errors, got %d", snap.SearchErrors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsFlushAndBatchSize(t *testing.T) {
	m := NewMetrics()

	m.RecordFlush(10, 4096, 1_000_000, true)
	m.RecordFlush(20, 4096, 2_000_000, true)

	snap := m.Snapshot()
	if snap.BatchesFlushed != 2 {
		t.Errorf("expected 2 batches flushed, got %d", snap.BatchesFlushed)
	}
	if snap.VectorsBatched != 30 {
		t.Errorf("expected 30 vectors batched, got %d", snap.VectorsBatched)
	}
	if snap.WALBytesWritten != 8192 {
		t.Errorf("expected 8192 wal bytes written, got %d", snap.WALBytesWritten)
	}
	expectedAvg := 15.0
	if snap.AvgBatchSize != expectedAvg {
		t.Errorf("expected avg batch size %.1f, got %.1f", expectedAvg, snap.AvgBatchSize)
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	m.RecordQueueDepth(20)
	m.RecordQueueDepth(15)

	snap := m.Snapshot()

	if snap.MaxQueueDepth != 20 {
		t.Errorf("expected max queue depth 20, got %d", snap.MaxQueueDepth)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgQueueDepth < expectedAvg-0.1 || snap.AvgQueueDepth > expectedAvg+0.1 {
		t.Errorf("expected avg queue depth %.1f, got %.1f", expectedAvg, snap.AvgQueueDepth)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordUpsert(1_000_000, true)
	m.RecordSearch(2_000_000, true)

	snap := m.Snapshot()

	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2_000_000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordUpsert(1_000_000, true)
	m.RecordSearch(2_000_000, true)
	m.RecordQueueDepth(10)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Error("expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.MaxQueueDepth != 0 {
		t.Errorf("expected 0 max queue depth after reset, got %d", snap.MaxQueueDepth)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveUpsert(1_000_000, true)
	observer.ObserveSearch(1_000_000, true)
	observer.ObserveFlush(10, 4096, 1_000_000, true)
	observer.ObserveQueueDepth(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveUpsert(1_000_000, true)
	metricsObserver.ObserveSearch(2_000_000, true)

	snap := m.Snapshot()
	if snap.UpsertOps != 1 {
		t.Errorf("expected 1 upsert op from observer, got %d", snap.UpsertOps)
	}
	if snap.SearchOps != 1 {
		t.Errorf("expected 1 search op from observer, got %d", snap.SearchOps)
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordUpsert(1_000_000, true)
	m.RecordSearch(2_000_000, true)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()

	if snap.UpsertQPS < 0.9 || snap.UpsertQPS > 1.1 {
		t.Errorf("expected UpsertQPS ~1.0, got %.2f", snap.UpsertQPS)
	}
	if snap.SearchQPS < 0.9 || snap.SearchQPS > 1.1 {
		t.Errorf("expected SearchQPS ~1.0, got %.2f", snap.SearchQPS)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordUpsert(500_000, true)
	}
	for i := 0; i < 49; i++ {
		m.RecordSearch(5_000_000, true)
	}
	m.RecordSearch(50_000_000, true)

	snap := m.Snapshot()

	if snap.TotalOps != 100 {
		t.Errorf("expected 100 total ops, got %d", snap.TotalOps)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for _, c := range snap.LatencyHistogram {
		totalInBuckets += c
	}
	if totalInBuckets == 0 {
		t.Error("expected histogram buckets to be populated")
	}
}
