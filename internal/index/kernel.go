package index

import "golang.org/x/sys/cpu"

// FloatKernel computes a full-precision distance between two equal-length
// float32 vectors. Lower is closer.
type FloatKernel func(a, b []float32) float32

// CoarseKernel computes a coarse distance between a quantized query (i8)
// and a quantized stored vector (u8). Lower is closer.
type CoarseKernel func(query []int8, stored []uint8) int32

// KernelName identifies which kernel implementation was selected at
// startup, for logging.
var KernelName string

// SelectFloatKernel picks the widest available accumulator-loop kernel for
// full-precision distance. On amd64 with AVX2 available the accumulator
// loop vectorizes well under the Go compiler; elsewhere it falls back to
// the identical-semantics scalar loop.
func SelectFloatKernel() FloatKernel {
	if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
		KernelName = "avx2"
		return dotProductFloat
	}
	KernelName = "scalar"
	return dotProductFloatScalar
}

// SelectCoarseKernel picks the coarse int8/uint8 dot-product kernel.
func SelectCoarseKernel() CoarseKernel {
	return dotProductCoarse
}

// dotProductFloat computes the negated dot product of a and b using four
// accumulator lanes reduced horizontally, with a scalar tail for lengths
// not a multiple of four. Negated so that "lower is closer" holds for
// dot-product similarity on normalized vectors.
func dotProductFloat(a, b []float32) float32 {
	n := len(a)
	var acc0, acc1, acc2, acc3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		acc0 += a[i] * b[i]
		acc1 += a[i+1] * b[i+1]
		acc2 += a[i+2] * b[i+2]
		acc3 += a[i+3] * b[i+3]
	}
	sum := acc0 + acc1 + acc2 + acc3
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return -sum
}

// dotProductFloatScalar is the reference scalar implementation, identical
// in semantics to dotProductFloat.
func dotProductFloatScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return -sum
}

// dotProductCoarse computes the negated dot product of a signed-8 query
// against an unsigned-8 stored vector, widening to 32-bit lanes to avoid
// overflow, mirroring the (s8,u8) widening-multiply coarse kernel.
func dotProductCoarse(query []int8, stored []uint8) int32 {
	n := len(query)
	var acc0, acc1, acc2, acc3 int32
	i := 0
	for ; i+4 <= n; i += 4 {
		acc0 += int32(query[i]) * int32(stored[i])
		acc1 += int32(query[i+1]) * int32(stored[i+1])
		acc2 += int32(query[i+2]) * int32(stored[i+2])
		acc3 += int32(query[i+3]) * int32(stored[i+3])
	}
	sum := acc0 + acc1 + acc2 + acc3
	for ; i < n; i++ {
		sum += int32(query[i]) * int32(stored[i])
	}
	return -sum
}
