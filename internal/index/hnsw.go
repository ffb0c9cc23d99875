// Package index implements the HNSW (hierarchical navigable small world)
// approximate nearest-neighbor graph: a flat contiguous vector arena, a
// parallel quantized arena for coarse distance, and a fixed-stride graph
// link arena, searched and grown with scalar-quantization-accelerated
// beam search.
package index

import (
	"math"
	"math/rand"
	"sort"
)

const sentinel = math.MaxUint32

// Defaults per the recommended HNSW configuration.
const (
	DefaultM              = 16
	DefaultM0             = 32
	DefaultMaxLayers       = 16
	DefaultEfConstruction = 128
)

// SearchResult is one ranked hit returned from Search.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// indexError is a plain string error, matching the wire package's
// lightweight error convention.
type indexError string

func (e indexError) Error() string { return string(e) }

const (
	ErrDimensionMismatch indexError = "index: vector dimension mismatch"
	ErrCapacityExceeded  indexError = "index: at capacity"
)

// HNSW is a single shard's in-memory approximate nearest-neighbor index.
// It is not safe for concurrent use; the owning shard's reactor goroutine
// is the only caller.
type HNSW struct {
	dim            int
	maxElements    int
	m, m0          int
	maxLayers      int
	efConstruction int

	arena      []float32 // maxElements * dim
	quantArena []uint8   // maxElements * dim
	magnitudes []float32 // maxElements
	levels     []uint8   // maxElements

	linkArena []uint32 // maxElements * linkStride
	linkStride int

	idMap      map[uint64]uint32
	reverseIDs []uint64
	count      int

	entryPoint     uint32
	maxLayerActive int

	visitedEpoch []uint32
	searchEpoch  uint32

	floatKernel  FloatKernel
	coarseKernel CoarseKernel
	quant        Quantizer
	rng          *rand.Rand
}

// New creates an HNSW index with the recommended default M/M0/max-layers/
// ef_construction, pre-allocating all arenas for maxElements rows. The
// arenas never reallocate while the index runs.
func New(dim, maxElements int, seed int64) *HNSW {
	return NewWithConfig(dim, maxElements, DefaultM, DefaultM0, DefaultMaxLayers, DefaultEfConstruction, seed)
}

// NewWithConfig creates an HNSW index with explicit graph parameters.
func NewWithConfig(dim, maxElements, m, m0, maxLayers, efConstruction int, seed int64) *HNSW {
	stride := m0 + (maxLayers-1)*m
	linkArena := make([]uint32, maxElements*stride)
	for i := range linkArena {
		linkArena[i] = sentinel
	}

	h := &HNSW{
		dim:            dim,
		maxElements:    maxElements,
		m:              m,
		m0:             m0,
		maxLayers:      maxLayers,
		efConstruction: efConstruction,
		arena:          make([]float32, maxElements*dim),
		quantArena:     make([]uint8, maxElements*dim),
		magnitudes:     make([]float32, maxElements),
		levels:         make([]uint8, maxElements),
		linkArena:      linkArena,
		linkStride:     stride,
		idMap:          make(map[uint64]uint32, maxElements),
		reverseIDs:     make([]uint64, maxElements),
		entryPoint:     sentinel,
		visitedEpoch:   make([]uint32, maxElements),
		floatKernel:    SelectFloatKernel(),
		coarseKernel:   SelectCoarseKernel(),
		rng:            rand.New(rand.NewSource(seed)),
	}
	return h
}

// Len returns the number of vectors currently in the index.
func (h *HNSW) Len() int { return h.count }

// Dim returns the configured vector dimension.
func (h *HNSW) Dim() int { return h.dim }

func (h *HNSW) arenaRow(row uint32) []float32 {
	return h.arena[int(row)*h.dim : (int(row)+1)*h.dim]
}

func (h *HNSW) quantRow(row uint32) []uint8 {
	return h.quantArena[int(row)*h.dim : (int(row)+1)*h.dim]
}

func (h *HNSW) neighborCap(layer int) int {
	if layer == 0 {
		return h.m0
	}
	return h.m
}

func (h *HNSW) linkOffset(row uint32, layer int) int {
	base := int(row) * h.linkStride
	if layer == 0 {
		return base
	}
	return base + h.m0 + (layer-1)*h.m
}

// getNeighbors returns a mutable view over row's neighbor slots at layer.
func (h *HNSW) getNeighbors(row uint32, layer int) []uint32 {
	off := h.linkOffset(row, layer)
	return h.linkArena[off : off+h.neighborCap(layer)]
}

// addNeighbor writes neighbor into the first empty slot of row's adjacency
// list at layer, reporting whether there was room.
func (h *HNSW) addNeighbor(row uint32, layer int, neighbor uint32) bool {
	slots := h.getNeighbors(row, layer)
	for i, n := range slots {
		if n == neighbor {
			return true
		}
		if n == sentinel {
			slots[i] = neighbor
			return true
		}
	}
	return false
}

// randomLevel samples a level by repeated 0.5-probability coin flips,
// capped at maxLayers-1.
func (h *HNSW) randomLevel() int {
	level := 0
	for level < h.maxLayers-1 && h.rng.Float32() < 0.5 {
		level++
	}
	return level
}

func (h *HNSW) nextSearchEpoch() uint32 {
	h.searchEpoch++
	return h.searchEpoch
}

func fullDistFn(h *HNSW, query []float32) func(uint32) float32 {
	return func(row uint32) float32 { return h.floatKernel(query, h.arenaRow(row)) }
}

func coarseDistFn(h *HNSW, query []int8) func(uint32) float32 {
	return func(row uint32) float32 { return float32(h.coarseKernel(query, h.quantRow(row))) }
}

// searchLayer runs a bounded beam search starting from entry at layer,
// using distFn for distances and epoch to mark the shared visited table.
// "Nearer" always means lower distance, per the kernels' negation
// convention.
func (h *HNSW) searchLayer(entry uint32, layer int, ef int, distFn func(uint32) float32, epoch uint32) *maxHeap {
	frontier := newMinHeap()
	results := newMaxHeap()

	entryDist := distFn(entry)
	frontier.push(candidate{entry, entryDist})
	results.push(candidate{entry, entryDist})
	h.visitedEpoch[entry] = epoch

	for frontier.Len() > 0 {
		cur := frontier.pop()
		if results.Len() >= ef && cur.Dist > results.peek().Dist {
			break
		}
		for _, nb := range h.getNeighbors(cur.Row, layer) {
			if nb == sentinel {
				continue
			}
			if h.visitedEpoch[nb] == epoch {
				continue
			}
			h.visitedEpoch[nb] = epoch
			d := distFn(nb)
			if results.Len() < ef || d < results.peek().Dist {
				frontier.push(candidate{nb, d})
				results.push(candidate{nb, d})
				if results.Len() > ef {
					results.pop()
				}
			}
		}
	}
	return results
}

// extractSorted drains a maxHeap into a slice ordered ascending by
// distance (nearest first).
func extractSorted(h *maxHeap) []candidate {
	out := make([]candidate, h.Len())
	copy(out, *h)
	sort.Slice(out, func(i, j int) bool { return out[i].Dist < out[j].Dist })
	return out
}

// pruneConnections trims row's adjacency list at layer to at most its
// layer's cap, keeping the closest neighbors to row by full-precision
// distance.
func (h *HNSW) pruneConnections(row uint32, layer int) {
	slots := h.getNeighbors(row, layer)
	capN := h.neighborCap(layer)

	var present []candidate
	for _, n := range slots {
		if n != sentinel {
			present = append(present, candidate{n, h.floatKernel(h.arenaRow(row), h.arenaRow(n))})
		}
	}
	if len(present) <= capN {
		return
	}
	sort.Slice(present, func(i, j int) bool { return present[i].Dist < present[j].Dist })
	present = present[:capN]

	for i := range slots {
		slots[i] = sentinel
	}
	for i, c := range present {
		slots[i] = c.Row
	}
}

// Upsert assigns the next row index to id/vector, connecting it into the
// graph at a randomly sampled level. An upsert of an existing id appends a
// second graph node rather than overwriting the first (see design notes).
func (h *HNSW) Upsert(id uint64, vector []float32) error {
	if len(vector) != h.dim {
		return ErrDimensionMismatch
	}
	if h.count >= h.maxElements {
		return ErrCapacityExceeded
	}

	row := uint32(h.count)
	copy(h.arenaRow(row), vector)
	h.magnitudes[row] = h.quant.QuantizeVector(vector, h.quantRow(row))
	h.idMap[id] = row
	h.reverseIDs[row] = id

	level := h.randomLevel()
	h.levels[row] = uint8(level)
	h.count++

	if h.entryPoint == sentinel {
		h.entryPoint = row
		h.maxLayerActive = level
		return nil
	}

	curBest := h.entryPoint
	curDist := h.floatKernel(vector, h.arenaRow(curBest))

	for l := h.maxLayerActive; l > level; l-- {
		improved := true
		for improved {
			improved = false
			for _, nb := range h.getNeighbors(curBest, l) {
				if nb == sentinel {
					continue
				}
				d := h.floatKernel(vector, h.arenaRow(nb))
				if d < curDist {
					curDist = d
					curBest = nb
					improved = true
				}
			}
		}
	}

	top := level
	if h.maxLayerActive < top {
		top = h.maxLayerActive
	}
	for l := top; l >= 0; l-- {
		epoch := h.nextSearchEpoch()
		results := h.searchLayer(curBest, l, h.efConstruction, fullDistFn(h, vector), epoch)
		neighbors := extractSorted(results)

		capN := h.neighborCap(l)
		if len(neighbors) > capN {
			neighbors = neighbors[:capN]
		}
		for _, nb := range neighbors {
			h.addNeighbor(row, l, nb.Row)
			h.addNeighbor(nb.Row, l, row)
			h.pruneConnections(nb.Row, l)
		}
		if len(neighbors) > 0 {
			curBest = neighbors[0].Row
		}
	}

	if level > h.maxLayerActive {
		h.maxLayerActive = level
		h.entryPoint = row
	}
	return nil
}

// Search quantizes query to i8 and greedily descends the upper layers
// using the coarse kernel, then runs a beam search at layer 0 before
// refining the resulting candidates with the full-precision kernel and
// returning the k closest.
func (h *HNSW) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != h.dim {
		return nil, ErrDimensionMismatch
	}
	if h.entryPoint == sentinel || k <= 0 {
		return nil, nil
	}

	queryQuant := make([]int8, h.dim)
	h.quant.QuantizeQuery(query, queryQuant)

	curBest := h.entryPoint
	for l := h.maxLayerActive; l >= 1; l-- {
		epoch := h.nextSearchEpoch()
		results := h.searchLayer(curBest, l, 1, coarseDistFn(h, queryQuant), epoch)
		if results.Len() > 0 {
			curBest = extractSorted(results)[0].Row
		}
	}

	ef := h.efConstruction
	if k > ef {
		ef = k
	}
	epoch := h.nextSearchEpoch()
	candidates := h.searchLayer(curBest, 0, ef, coarseDistFn(h, queryQuant), epoch)

	refined := make([]candidate, 0, candidates.Len())
	for candidates.Len() > 0 {
		c := candidates.pop()
		d := h.floatKernel(query, h.arenaRow(c.Row))
		refined = append(refined, candidate{c.Row, d})
	}
	sort.Slice(refined, func(i, j int) bool { return refined[i].Dist < refined[j].Dist })
	if len(refined) > k {
		refined = refined[:k]
	}

	out := make([]SearchResult, len(refined))
	for i, c := range refined {
		out[i] = SearchResult{ID: h.reverseIDs[c.Row], Distance: c.Dist}
	}
	return out, nil
}
