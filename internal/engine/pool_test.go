package engine

import "testing"

func TestAcquireXmitBufferIsEmptyAndPooled(t *testing.T) {
	buf := acquireXmitBuffer()
	if len(buf) != 0 {
		t.Fatalf("len = %d, want 0", len(buf))
	}
	if cap(buf) != xmitBucket4k {
		t.Fatalf("cap = %d, want %d", cap(buf), xmitBucket4k)
	}
}

func TestReleaseXmitBufferRoundTrips(t *testing.T) {
	buf := acquireXmitBuffer()
	buf = append(buf, []byte("hello")...)
	releaseXmitBuffer(buf)

	next := acquireXmitBuffer()
	if len(next) != 0 {
		t.Fatalf("reacquired buffer should be reset to len 0, got %d", len(next))
	}
}

func TestReleaseXmitBufferIgnoresOddCapacity(t *testing.T) {
	buf := make([]byte, 0, 123)
	releaseXmitBuffer(buf) // must not panic
}
