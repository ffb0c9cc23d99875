package batch

import "testing"

func TestTryAddAndIsDirty(t *testing.T) {
	a, err := New(SectorSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.IsDirty() {
		t.Fatal("new accumulator should not be dirty")
	}

	if !a.TryAdd(1, []byte("hello")) {
		t.Fatal("TryAdd should succeed within capacity")
	}
	if !a.IsDirty() {
		t.Fatal("accumulator should be dirty after TryAdd")
	}
	if a.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", a.Len())
	}
}

func TestTryAddRejectsOverflow(t *testing.T) {
	a, err := New(SectorSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	big := make([]byte, SectorSize+1)
	if a.TryAdd(1, big) {
		t.Fatal("TryAdd should reject a record larger than capacity")
	}
	if a.IsDirty() {
		t.Fatal("rejected TryAdd must not mutate state")
	}
}

func TestPrepareFlushAlignsAndZeroPads(t *testing.T) {
	a, err := New(2 * SectorSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.TryAdd(1, []byte("abc"))
	flushed := a.PrepareFlush()

	if len(flushed)%SectorSize != 0 {
		t.Fatalf("flushed length %d is not sector aligned", len(flushed))
	}
	if len(flushed) != SectorSize {
		t.Fatalf("flushed length = %d, want %d", len(flushed), SectorSize)
	}
	for i := 3; i < len(flushed); i++ {
		if flushed[i] != 0 {
			t.Fatalf("byte %d not zero-padded: %x", i, flushed[i])
		}
	}
	if a.IsDirty() {
		t.Fatal("cursor should reset after PrepareFlush")
	}
}

func TestTakeTagsClears(t *testing.T) {
	a, err := New(SectorSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.TryAdd(10, []byte("x"))
	a.TryAdd(11, []byte("y"))

	if !a.HasTags() {
		t.Fatal("expected pending tags")
	}

	tags := a.TakeTags()
	if len(tags) != 2 || tags[0] != 10 || tags[1] != 11 {
		t.Fatalf("tags = %v, want [10 11]", tags)
	}
	if a.HasTags() {
		t.Fatal("tags should be cleared after TakeTags")
	}
}

func TestReset(t *testing.T) {
	a, err := New(SectorSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.TryAdd(1, []byte("data"))
	a.Reset()

	if a.IsDirty() || a.HasTags() {
		t.Fatal("Reset should clear both staged bytes and tags")
	}
}
