package index

import (
	"math"
	"math/rand"
	"testing"
)

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		f := rng.Float32()*2 - 1
		v[i] = f
		norm += float64(f) * float64(f)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func TestUpsertSetsEntryPointOnFirstNode(t *testing.T) {
	h := New(8, 16, 1)
	if err := h.Upsert(1, randomUnitVector(rand.New(rand.NewSource(1)), 8)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if h.entryPoint == sentinel {
		t.Fatal("entry point should be set after first upsert")
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	h := New(8, 16, 1)
	if err := h.Upsert(1, make([]float32, 4)); err != ErrDimensionMismatch {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestUpsertCapacityExceeded(t *testing.T) {
	h := New(4, 1, 1)
	rng := rand.New(rand.NewSource(2))
	if err := h.Upsert(1, randomUnitVector(rng, 4)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := h.Upsert(2, randomUnitVector(rng, 4)); err != ErrCapacityExceeded {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}

func TestSearchReturnsExactMatchFirst(t *testing.T) {
	dim := 16
	h := New(dim, 256, 42)
	rng := rand.New(rand.NewSource(42))

	vectors := make(map[uint64][]float32)
	for id := uint64(1); id <= 100; id++ {
		v := randomUnitVector(rng, dim)
		vectors[id] = v
		if err := h.Upsert(id, v); err != nil {
			t.Fatalf("Upsert(%d): %v", id, err)
		}
	}

	target := vectors[50]
	results, err := h.Search(target, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != 50 {
		t.Errorf("expected closest id 50 (exact match), got %d with distance %v", results[0].ID, results[0].Distance)
	}
}

func TestSearchRespectsK(t *testing.T) {
	dim := 8
	h := New(dim, 64, 7)
	rng := rand.New(rand.NewSource(7))
	for id := uint64(1); id <= 30; id++ {
		if err := h.Upsert(id, randomUnitVector(rng, dim)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	results, err := h.Search(randomUnitVector(rng, dim), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending by distance at index %d", i)
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	h := New(8, 16, 1)
	results, err := h.Search(make([]float32, 8), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results on empty index, got %v", results)
	}
}

func TestAddNeighborRejectsWhenFull(t *testing.T) {
	h := New(4, 8, 1)
	for i := uint32(0); i < uint32(h.neighborCap(0)); i++ {
		if !h.addNeighbor(0, 0, i+1) {
			t.Fatalf("addNeighbor should succeed while slots remain (i=%d)", i)
		}
	}
	if h.addNeighbor(0, 0, 9999) {
		t.Fatal("addNeighbor should fail once all slots are full")
	}
}

func TestLinkOffsetLayoutIsStridedPerRow(t *testing.T) {
	h := NewWithConfig(4, 8, 2, 4, 3, 8, 1)
	// stride = m0 + (maxLayers-1)*m = 4 + 2*2 = 8
	if h.linkStride != 8 {
		t.Fatalf("linkStride = %d, want 8", h.linkStride)
	}
	if got := h.linkOffset(1, 0); got != 8 {
		t.Fatalf("linkOffset(row=1, layer=0) = %d, want 8", got)
	}
	if got := h.linkOffset(1, 1); got != 12 {
		t.Fatalf("linkOffset(row=1, layer=1) = %d, want 12", got)
	}
}
