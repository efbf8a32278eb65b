// Package scanner aggregates candidate rows surfaced by a prober into
// a top-k result set under a chosen distance metric.
package scanner

import (
	"container/heap"
	"math"
	"sort"

	"github.com/mislam5285/gqr/pkg/lsh"
)

// Metric selects the distance used to score candidates
type Metric int

const (
	// Euclidean is L2 distance
	Euclidean Metric = iota

	// Cosine is 1 - cosine similarity
	Cosine

	// DotProduct is negative dot product (maximum inner product search)
	DotProduct
)

// Result is one scored candidate
type Result struct {
	Row  uint32
	Dist float32
}

// TopK scores candidate rows against a query and keeps the k nearest.
// Rows seen more than once are scored once; the duplicate visits still
// happen when buckets of different tables overlap.
type TopK struct {
	data   lsh.Dataset
	query  []float32
	k      int
	metric Metric

	seen map[uint32]struct{}
	h    resultHeap
}

// NewTopK creates a scanner keeping the k nearest rows of data to query.
func NewTopK(data lsh.Dataset, query []float32, k int, metric Metric) *TopK {
	return &TopK{
		data:   data,
		query:  query,
		k:      k,
		metric: metric,
		seen:   make(map[uint32]struct{}),
	}
}

// Scan scores one candidate row, ignoring rows already scanned.
func (s *TopK) Scan(row uint32) {
	if _, dup := s.seen[row]; dup {
		return
	}
	s.seen[row] = struct{}{}

	dist := Distance(s.metric, s.query, s.data.Row(int(row)))
	if len(s.h) < s.k {
		heap.Push(&s.h, Result{Row: row, Dist: dist})
		return
	}
	if dist < s.h[0].Dist {
		s.h[0] = Result{Row: row, Dist: dist}
		heap.Fix(&s.h, 0)
	}
}

// Count returns the number of distinct rows scanned.
func (s *TopK) Count() int { return len(s.seen) }

// Results returns the k nearest scanned rows, ascending by distance.
func (s *TopK) Results() []Result {
	out := make([]Result, len(s.h))
	copy(out, s.h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		return out[i].Row < out[j].Row
	})
	return out
}

// resultHeap is a max-heap on distance, so the worst kept candidate
// sits at the root.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Dist > h[j].Dist }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Distance computes the metric between two vectors of equal dimension.
func Distance(m Metric, a, b []float32) float32 {
	switch m {
	case Cosine:
		return cosineDistance(a, b)
	case DotProduct:
		return -dotProduct(a, b)
	default:
		return euclideanDistance(a, b)
	}
}

func euclideanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}

func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dot/float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
