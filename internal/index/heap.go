package index

import "container/heap"

// candidate pairs a graph row with its distance to the query under
// whatever kernel produced it. Lower Dist is closer.
type candidate struct {
	Row  uint32
	Dist float32
}

// minHeap is a frontier of unvisited candidates, nearest first.
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Dist < h[j].Dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap is a bounded best-so-far result set, worst first, so the worst
// candidate can be evicted in O(log n) when the beam is full.
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Dist > h[j].Dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func newMinHeap() *minHeap {
	h := &minHeap{}
	heap.Init(h)
	return h
}

func newMaxHeap() *maxHeap {
	h := &maxHeap{}
	heap.Init(h)
	return h
}

func (h *minHeap) push(c candidate) { heap.Push(h, c) }
func (h *minHeap) pop() candidate   { return heap.Pop(h).(candidate) }

func (h *maxHeap) push(c candidate) { heap.Push(h, c) }
func (h *maxHeap) pop() candidate   { return heap.Pop(h).(candidate) }
func (h *maxHeap) peek() candidate  { return (*h)[0] }
