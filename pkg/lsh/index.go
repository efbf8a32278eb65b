// Package lsh implements a family of projection-then-binary-quantization
// hash indexes for approximate nearest-neighbor search.
//
// An index owns L independent hash tables. Each table projects vectors
// through a trained PCA basis composed with an ITQ-refined orthogonal
// rotation, quantizes the projection to a sign pattern, and packs the
// pattern into a 64-bit bucket identifier. Queries enumerate candidate
// buckets through a caller-supplied Prober until its candidate quota
// is met.
//
// An index is not safe for concurrent mutation. Concurrent Probe and
// TopK calls are safe once hashing has finished, provided no Insert is
// in flight.
package lsh

import (
	"context"
	"fmt"

	"github.com/mislam5285/gqr/pkg/observability"
)

type state int

const (
	stateEmpty state = iota
	stateConfigured
	stateTrained
	statePopulated
)

func (s state) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateConfigured:
		return "configured"
	case stateTrained:
		return "trained"
	case statePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// Index is one trained LSH index: L (basis, bucket map) pairs plus the
// optional quantization statistics of table 0.
type Index struct {
	param Parameter

	// bases[k] is the N x D projection basis of table k, populated by TrainAll
	bases [][][]float32

	// rnd[k] holds N uints in [0, M) per table. Persisted for format
	// compatibility; the canonical hash never reads them.
	rnd [][]uint32

	// tables[k] maps bucket id to member rows in insertion order
	tables []map[uint64][]uint32

	stats *QuantStats

	state state
}

// New creates an empty index. Configure it with Reset or populate it
// with Load.
func New() *Index {
	return &Index{}
}

// Reset configures an empty (or previously configured) index with the
// given parameters, discarding any trained or populated state.
func (idx *Index) Reset(p Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}

	idx.param = p
	idx.bases = make([][][]float32, p.L)
	idx.rnd = make([][]uint32, p.L)
	idx.tables = make([]map[uint64][]uint32, p.L)
	for k := 0; k < p.L; k++ {
		idx.tables[k] = make(map[uint64][]uint32)
	}
	idx.stats = nil
	idx.state = stateConfigured
	return nil
}

// Param returns the index parameters.
func (idx *Index) Param() Parameter { return idx.param }

// Trained reports whether all table bases have been trained.
func (idx *Index) Trained() bool { return idx.state >= stateTrained }

// Basis returns the N x D projection basis of table k. The returned
// slices are owned by the index and must not be modified.
func (idx *Index) Basis(k int) [][]float32 { return idx.bases[k] }

// Insert hashes v into every table and appends row to the matching
// buckets. Rows are not deduplicated; inserting the same row twice
// records it twice.
func (idx *Index) Insert(row uint32, v []float32) error {
	if idx.state < stateTrained {
		return fmt.Errorf("%w: insert requires a trained index, index is %s", ErrState, idx.state)
	}
	if len(v) != idx.param.D {
		return fmt.Errorf("%w: vector dimension %d, index expects %d", ErrDataset, len(v), idx.param.D)
	}

	for k := 0; k < idx.param.L; k++ {
		bid := idx.bucketIDUnchecked(k, v)
		idx.tables[k][bid] = append(idx.tables[k][bid], row)
	}
	if idx.state == stateTrained {
		idx.state = statePopulated
	}
	return nil
}

// Hash inserts every dataset row in order, reporting progress once per
// row. The context is checked periodically; cancellation aborts with
// the tables partially populated.
func (idx *Index) Hash(ctx context.Context, data Dataset, progress Progress) error {
	if idx.state < stateTrained {
		return fmt.Errorf("%w: hash requires a trained index, index is %s", ErrState, idx.state)
	}
	if data.Dim() != idx.param.D {
		return fmt.Errorf("%w: dataset dimension %d, index expects %d", ErrDataset, data.Dim(), idx.param.D)
	}

	n := data.Len()
	for r := 0; r < n; r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := idx.Insert(uint32(r), data.Row(r)); err != nil {
			return err
		}
		if progress != nil {
			progress.Tick()
		}
	}

	observability.Debugf("hashed %d vectors into %d tables", n, idx.param.L)
	idx.state = statePopulated
	return nil
}

// Probe forwards every member of bucket bid in table t to the prober,
// in insertion order, and returns the bucket size. A missing bucket
// returns 0 without invoking the prober.
func (idx *Index) Probe(t int, bid uint64, pr Prober) (int, error) {
	if idx.state < statePopulated {
		return 0, fmt.Errorf("%w: probe requires a populated index, index is %s", ErrState, idx.state)
	}
	if t < 0 || t >= idx.param.L {
		return 0, fmt.Errorf("%w: table %d out of range [0, %d)", ErrInvalidParameter, t, idx.param.L)
	}

	members, ok := idx.tables[t][bid]
	if !ok {
		return 0, nil
	}
	for _, row := range members {
		pr.Visit(row)
	}
	return len(members), nil
}

// TopK drives the prober until it reports at least quota candidates or
// runs out of buckets. Quota enforcement beyond the bucket granularity
// and candidate deduplication are the prober's responsibility.
func (idx *Index) TopK(query []float32, pr Prober, quota int) error {
	if idx.state < statePopulated {
		return fmt.Errorf("%w: query requires a populated index, index is %s", ErrState, idx.state)
	}
	if len(query) != idx.param.D {
		return fmt.Errorf("%w: query dimension %d, index expects %d", ErrDataset, len(query), idx.param.D)
	}

	for pr.HasNextBucket() && pr.ItemsProbed() < quota {
		t, bid := pr.NextBucket()
		if _, err := idx.Probe(t, bid, pr); err != nil {
			return err
		}
	}
	return nil
}

// TableSize returns the number of non-empty buckets in table k.
func (idx *Index) TableSize(k int) int {
	return len(idx.tables[k])
}

// MaxBucketSize returns the size of the largest bucket in table k.
func (idx *Index) MaxBucketSize(k int) int {
	max := 0
	for _, members := range idx.tables[k] {
		if len(members) > max {
			max = len(members)
		}
	}
	return max
}

// TotalEntries returns the number of stored row references across all
// tables: L times the inserted row count.
func (idx *Index) TotalEntries() int {
	total := 0
	for _, table := range idx.tables {
		for _, members := range table {
			total += len(members)
		}
	}
	return total
}

// Buckets returns the bucket map of table k. The map and its slices
// are owned by the index and must not be modified.
func (idx *Index) Buckets(k int) map[uint64][]uint32 {
	return idx.tables[k]
}
