package prober

import (
	"container/heap"
	"math"
	"sort"

	"github.com/mislam5285/gqr/pkg/lsh"
)

// QuantizationExpansion orders bit flips by the cost of crossing each
// quantization boundary: cheap flips (projections near zero) are tried
// before expensive ones. Flip sets are expanded in nondecreasing total
// cost through a heap, interleaved across tables. Each table's own
// bucket is emitted before any flip set.
//
// When the index carries quantization statistics, table 0's flip costs
// are measured against the mean of the opposite sign class instead of
// the raw boundary distance.
type QuantizationExpansion struct {
	scan Scanner

	n    int
	base []uint64
	// flips[t] holds table t's bit indices sorted by ascending flip cost
	flips [][]flipCost

	pending int // tables whose base bucket is still unemitted
	h       nodeHeap
}

type flipCost struct {
	bit  int
	cost float32
}

// node is a non-empty flip set: positions into the table's sorted
// flip-cost list, ascending; successors shift or extend the last
// position, which enumerates sets in nondecreasing cost order.
type node struct {
	cost  float32
	table int
	set   []int
}

// NewQuantizationExpansion prepares a cost-ordered multi-probe prober
// for one query.
func NewQuantizationExpansion(idx *lsh.Index, query []float32, scan Scanner) (*QuantizationExpansion, error) {
	p := idx.Param()
	stats := idx.Stats()

	qe := &QuantizationExpansion{
		scan:    scan,
		n:       p.N,
		base:    make([]uint64, p.L),
		flips:   make([][]flipCost, p.L),
		pending: p.L,
	}

	for t := 0; t < p.L; t++ {
		proj, err := idx.Project(t, query)
		if err != nil {
			return nil, err
		}
		qe.base[t] = lsh.PackBits(lsh.Quantize(proj))

		costs := make([]flipCost, p.N)
		for i, f := range proj {
			cost := float32(math.Abs(float64(f)))
			if t == 0 && stats != nil {
				if f >= 0 {
					cost = float32(math.Abs(float64(f - stats.MeanNeg[i])))
				} else {
					cost = float32(math.Abs(float64(f - stats.MeanPos[i])))
				}
			}
			costs[i] = flipCost{bit: i, cost: cost}
		}
		sort.Slice(costs, func(a, b int) bool { return costs[a].cost < costs[b].cost })
		qe.flips[t] = costs

		if p.N > 0 {
			heap.Push(&qe.h, node{cost: costs[0].cost, table: t, set: []int{0}})
		}
	}

	return qe, nil
}

// HasNextBucket implements lsh.Prober.
func (qe *QuantizationExpansion) HasNextBucket() bool {
	return qe.pending > 0 || qe.h.Len() > 0
}

// NextBucket implements lsh.Prober.
func (qe *QuantizationExpansion) NextBucket() (int, uint64) {
	if qe.pending > 0 {
		t := len(qe.base) - qe.pending
		qe.pending--
		return t, qe.base[t]
	}

	nd := heap.Pop(&qe.h).(node)
	qe.expand(nd)

	bucket := qe.base[nd.table]
	for _, pos := range nd.set {
		bucket ^= bitMask(qe.n, qe.flips[nd.table][pos].bit)
	}
	return nd.table, bucket
}

// Visit implements lsh.Prober.
func (qe *QuantizationExpansion) Visit(row uint32) { qe.scan.Scan(row) }

// ItemsProbed implements lsh.Prober.
func (qe *QuantizationExpansion) ItemsProbed() int { return qe.scan.Count() }

// expand pushes the shift and extend successors of a popped flip set.
func (qe *QuantizationExpansion) expand(nd node) {
	last := nd.set[len(nd.set)-1]
	if last+1 >= qe.n {
		return
	}
	costs := qe.flips[nd.table]
	step := costs[last+1].cost

	shifted := make([]int, len(nd.set))
	copy(shifted, nd.set)
	shifted[len(shifted)-1] = last + 1
	heap.Push(&qe.h, node{
		cost:  nd.cost - costs[last].cost + step,
		table: nd.table,
		set:   shifted,
	})

	extended := make([]int, len(nd.set)+1)
	copy(extended, nd.set)
	extended[len(nd.set)] = last + 1
	heap.Push(&qe.h, node{
		cost:  nd.cost + step,
		table: nd.table,
		set:   extended,
	})
}

type nodeHeap []node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
