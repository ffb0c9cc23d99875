package vortex

import (
	"testing"

	"github.com/vortexdb/vortex/internal/config"
)

func TestStartRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ShardCount = 0

	if _, err := Start(cfg, nil); err == nil {
		t.Fatal("expected error for invalid shard count")
	}
}

func TestMockObserverRecordsCalls(t *testing.T) {
	m := NewMockObserver()
	m.ObserveUpsert(100, true)
	m.ObserveUpsert(200, false)
	m.ObserveSearch(50, true)
	m.ObserveFlush(5, 4096, 300, true)
	m.ObserveQueueDepth(3)

	calls := m.CallCounts()
	if calls["upsert"] != 2 || calls["search"] != 1 || calls["flush"] != 1 {
		t.Fatalf("calls = %+v", calls)
	}

	ok := m.SuccessCounts()
	if ok["upsert"] != 1 {
		t.Fatalf("upsert success count = %d, want 1", ok["upsert"])
	}

	vectors, walBytes, _ := m.LastFlush()
	if vectors != 5 || walBytes != 4096 {
		t.Fatalf("LastFlush = (%d, %d), want (5, 4096)", vectors, walBytes)
	}

	if m.LastQueueDepth() != 3 {
		t.Fatalf("LastQueueDepth = %d, want 3", m.LastQueueDepth())
	}
}

func TestMockObserverReset(t *testing.T) {
	m := NewMockObserver()
	m.ObserveUpsert(1, true)
	m.Reset()

	if m.CallCounts()["upsert"] != 0 {
		t.Fatal("Reset did not clear call counts")
	}
}
