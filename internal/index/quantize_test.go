package index

import (
	"math"
	"testing"
)

func TestQuantizeVectorRange(t *testing.T) {
	var q Quantizer
	v := []float32{3, -4, 0, 1}
	out := make([]uint8, len(v))
	norm := q.QuantizeVector(v, out)

	// 3² + (-4)² + 0² + 1² = 26
	if want := float32(math.Sqrt(26)); norm != want {
		t.Fatalf("norm = %v, want %v", norm, want)
	}
	for _, b := range out {
		if b > 255 {
			t.Fatalf("quantized byte %d out of range", b)
		}
	}
}

func TestQuantizeVectorZero(t *testing.T) {
	var q Quantizer
	v := []float32{0, 0, 0}
	out := make([]uint8, len(v))
	q.QuantizeVector(v, out)

	// normalized 0 maps to (0+1)*127.5 = 127.5 -> 127
	for _, b := range out {
		if b != 127 {
			t.Fatalf("zero-vector component = %d, want 127", b)
		}
	}
}

func TestQuantizeQueryRange(t *testing.T) {
	var q Quantizer
	v := []float32{1, -1, 0.5}
	out := make([]int8, len(v))
	q.QuantizeQuery(v, out)

	for _, b := range out {
		if b < -128 || b > 127 {
			t.Fatalf("quantized query byte %d out of range", b)
		}
	}
}

func TestClampBounds(t *testing.T) {
	if clampU8(300) != 255 {
		t.Fatal("clampU8(300) should saturate to 255")
	}
	if clampU8(-10) != 0 {
		t.Fatal("clampU8(-10) should saturate to 0")
	}
	if clampI8(200) != 127 {
		t.Fatal("clampI8(200) should saturate to 127")
	}
	if clampI8(-200) != -128 {
		t.Fatal("clampI8(-200) should saturate to -128")
	}
}
