package prober

import (
	"github.com/mislam5285/gqr/pkg/lsh"
)

// HashLookup enumerates buckets in Hamming order around the query
// code: every table's own bucket first, then all buckets at radius 1,
// radius 2, and so on up to a configurable maximum. Within a radius
// the order is deterministic: tables in index order, bit combinations
// in lexicographic order.
type HashLookup struct {
	scan Scanner

	n     int
	l     int
	base  []uint64 // per-table query bucket
	maxR  int
	valid bool

	radius int
	table  int
	comb   []int // ascending id-bit positions of the current flip set
}

// NewHashLookup prepares a Hamming-order prober for one query.
// maxRadius caps the enumerated Hamming distance; values below zero or
// above N are clamped to N.
func NewHashLookup(idx *lsh.Index, query []float32, scan Scanner, maxRadius int) (*HashLookup, error) {
	p := idx.Param()
	if maxRadius < 0 || maxRadius > p.N {
		maxRadius = p.N
	}

	base := make([]uint64, p.L)
	for t := 0; t < p.L; t++ {
		bid, err := idx.BucketID(t, query)
		if err != nil {
			return nil, err
		}
		base[t] = bid
	}

	return &HashLookup{
		scan:  scan,
		n:     p.N,
		l:     p.L,
		base:  base,
		maxR:  maxRadius,
		valid: true,
	}, nil
}

// HasNextBucket implements lsh.Prober.
func (h *HashLookup) HasNextBucket() bool { return h.valid }

// NextBucket implements lsh.Prober.
func (h *HashLookup) NextBucket() (int, uint64) {
	bucket := h.base[h.table]
	for _, pos := range h.comb {
		bucket ^= 1 << uint(pos)
	}
	table := h.table
	h.advance()
	return table, bucket
}

// Visit implements lsh.Prober.
func (h *HashLookup) Visit(row uint32) { h.scan.Scan(row) }

// ItemsProbed implements lsh.Prober.
func (h *HashLookup) ItemsProbed() int { return h.scan.Count() }

// advance steps table-first within the current flip set, then the flip
// set lexicographically, then the radius.
func (h *HashLookup) advance() {
	h.table++
	if h.table < h.l {
		return
	}
	h.table = 0

	if nextCombination(h.comb, h.n) {
		return
	}

	h.radius++
	if h.radius > h.maxR {
		h.valid = false
		return
	}
	h.comb = make([]int, h.radius)
	for i := range h.comb {
		h.comb[i] = i
	}
}

// nextCombination advances an ascending r-combination of [0, n) in
// lexicographic order, reporting false when exhausted.
func nextCombination(comb []int, n int) bool {
	r := len(comb)
	for i := r - 1; i >= 0; i-- {
		if comb[i] < n-r+i {
			comb[i]++
			for j := i + 1; j < r; j++ {
				comb[j] = comb[j-1] + 1
			}
			return true
		}
	}
	return false
}
