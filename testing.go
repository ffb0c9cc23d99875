package vortex

import "sync"

// MockObserver is a thread-safe Observer that records every call it
// receives, for use in tests that assert on what an Engine or Shard
// reported rather than wiring a real metrics backend.
type MockObserver struct {
	mu sync.RWMutex

	upsertCalls int
	upsertOK    int
	searchCalls int
	searchOK    int
	flushCalls  int
	flushOK     int

	lastUpsertLatencyNs uint64
	lastSearchLatencyNs uint64
	lastFlushLatencyNs  uint64
	lastFlushVectors    int
	lastFlushWALBytes   uint64

	lastQueueDepth uint32
}

// NewMockObserver creates an empty MockObserver.
func NewMockObserver() *MockObserver {
	return &MockObserver{}
}

// ObserveUpsert implements Observer.
func (m *MockObserver) ObserveUpsert(latencyNs uint64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if success {
		m.upsertOK++
	}
	m.lastUpsertLatencyNs = latencyNs
}

// ObserveSearch implements Observer.
func (m *MockObserver) ObserveSearch(latencyNs uint64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if success {
		m.searchOK++
	}
	m.lastSearchLatencyNs = latencyNs
}

// ObserveFlush implements Observer.
func (m *MockObserver) ObserveFlush(vectors int, walBytes uint64, latencyNs uint64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCalls++
	if success {
		m.flushOK++
	}
	m.lastFlushVectors = vectors
	m.lastFlushWALBytes = walBytes
	m.lastFlushLatencyNs = latencyNs
}

// ObserveQueueDepth implements Observer.
func (m *MockObserver) ObserveQueueDepth(depth uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQueueDepth = depth
}

// CallCounts returns the number of times each Observe method has been
// called, keyed by operation name.
func (m *MockObserver) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"upsert": m.upsertCalls,
		"search": m.searchCalls,
		"flush":  m.flushCalls,
	}
}

// SuccessCounts returns the number of successful calls recorded per
// operation name.
func (m *MockObserver) SuccessCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"upsert": m.upsertOK,
		"search": m.searchOK,
		"flush":  m.flushOK,
	}
}

// LastFlush returns the vectors, WAL bytes, and latency reported by the
// most recent ObserveFlush call.
func (m *MockObserver) LastFlush() (vectors int, walBytes uint64, latencyNs uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFlushVectors, m.lastFlushWALBytes, m.lastFlushLatencyNs
}

// LastQueueDepth returns the most recently reported queue depth.
func (m *MockObserver) LastQueueDepth() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQueueDepth
}

// Reset clears all recorded calls and values.
func (m *MockObserver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls, m.upsertOK = 0, 0
	m.searchCalls, m.searchOK = 0, 0
	m.flushCalls, m.flushOK = 0, 0
	m.lastUpsertLatencyNs = 0
	m.lastSearchLatencyNs = 0
	m.lastFlushLatencyNs = 0
	m.lastFlushVectors = 0
	m.lastFlushWALBytes = 0
	m.lastQueueDepth = 0
}

var _ Observer = (*MockObserver)(nil)
