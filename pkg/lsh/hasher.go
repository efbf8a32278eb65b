package lsh

import (
	"context"
	"fmt"
	"math"
)

// QuantStats holds per-bit statistics of the table-0 projections,
// split by sign: means and standard deviations of the non-negative
// and the negative projections observed across a dataset. Probers use
// them to order bit flips by expected cost.
type QuantStats struct {
	MeanPos []float32
	MeanNeg []float32
	StdPos  []float32
	StdNeg  []float32
}

// Project returns basis[table] . v, the real-valued N-vector of
// projection scores. The input must be finite.
func (idx *Index) Project(table int, v []float32) ([]float32, error) {
	if idx.state < stateTrained {
		return nil, fmt.Errorf("%w: projection requires a trained index, index is %s", ErrState, idx.state)
	}
	if table < 0 || table >= idx.param.L {
		return nil, fmt.Errorf("%w: table %d out of range [0, %d)", ErrInvalidParameter, table, idx.param.L)
	}
	if len(v) != idx.param.D {
		return nil, fmt.Errorf("%w: vector dimension %d, index expects %d", ErrDataset, len(v), idx.param.D)
	}
	return idx.projectUnchecked(table, v), nil
}

func (idx *Index) projectUnchecked(table int, v []float32) []float32 {
	basis := idx.bases[table]
	proj := make([]float32, idx.param.N)
	for i, row := range basis {
		var sum float32
		for d, w := range row {
			sum += w * v[d]
		}
		proj[i] = sum
	}
	return proj
}

// Quantize maps projection scores to their sign bits: bit i is 1 when
// proj[i] >= 0, else 0.
func Quantize(proj []float32) []uint8 {
	bits := make([]uint8, len(proj))
	for i, f := range proj {
		if f >= 0 {
			bits[i] = 1
		}
	}
	return bits
}

// PackBits packs up to 64 sign bits into a bucket identifier. Bit 0
// occupies the most-significant position of the N-bit id and bit N-1
// the least-significant. The ordering is part of the persisted format.
func PackBits(bits []uint8) uint64 {
	n := len(bits)
	var id uint64
	for i, b := range bits {
		if b != 0 {
			id |= 1 << uint(n-1-i)
		}
	}
	return id
}

// BucketID returns the bucket identifier of v in the given table:
// PackBits(Quantize(Project(table, v))).
func (idx *Index) BucketID(table int, v []float32) (uint64, error) {
	proj, err := idx.Project(table, v)
	if err != nil {
		return 0, err
	}
	return PackBits(Quantize(proj)), nil
}

func (idx *Index) bucketIDUnchecked(table int, v []float32) uint64 {
	return PackBits(Quantize(idx.projectUnchecked(table, v)))
}

// SetMeanAndStd computes the sign-conditional projection statistics of
// table 0 over the dataset and stores them on the index. Two passes:
// the first accumulates conditional sums and counts, the second
// squared deviations from the conditional means. The divisor is the
// conditional count, giving the population estimator.
func (idx *Index) SetMeanAndStd(ctx context.Context, data Dataset) error {
	stats, err := idx.MeanAndStd(ctx, data)
	if err != nil {
		return err
	}
	idx.stats = stats
	return nil
}

// Stats returns the statistics stored by SetMeanAndStd, or nil.
func (idx *Index) Stats() *QuantStats { return idx.stats }

// MeanAndStd computes the sign-conditional projection statistics of
// table 0 without storing them.
func (idx *Index) MeanAndStd(ctx context.Context, data Dataset) (*QuantStats, error) {
	if idx.state < stateTrained {
		return nil, fmt.Errorf("%w: statistics require a trained index, index is %s", ErrState, idx.state)
	}
	if data.Dim() != idx.param.D {
		return nil, fmt.Errorf("%w: dataset dimension %d, index expects %d", ErrDataset, data.Dim(), idx.param.D)
	}

	n := idx.param.N
	rows := data.Len()

	sumPos := make([]float64, n)
	sumNeg := make([]float64, n)
	cntPos := make([]int, n)
	cntNeg := make([]int, n)

	for r := 0; r < rows; r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		proj := idx.projectUnchecked(0, data.Row(r))
		for i, f := range proj {
			if f >= 0 {
				sumPos[i] += float64(f)
				cntPos[i]++
			} else {
				sumNeg[i] += float64(f)
				cntNeg[i]++
			}
		}
	}

	stats := &QuantStats{
		MeanPos: make([]float32, n),
		MeanNeg: make([]float32, n),
		StdPos:  make([]float32, n),
		StdNeg:  make([]float32, n),
	}
	for i := 0; i < n; i++ {
		if cntPos[i] > 0 {
			stats.MeanPos[i] = float32(sumPos[i] / float64(cntPos[i]))
		}
		if cntNeg[i] > 0 {
			stats.MeanNeg[i] = float32(sumNeg[i] / float64(cntNeg[i]))
		}
	}

	devPos := make([]float64, n)
	devNeg := make([]float64, n)
	for r := 0; r < rows; r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		proj := idx.projectUnchecked(0, data.Row(r))
		for i, f := range proj {
			if f >= 0 {
				d := float64(f - stats.MeanPos[i])
				devPos[i] += d * d
			} else {
				d := float64(f - stats.MeanNeg[i])
				devNeg[i] += d * d
			}
		}
	}
	for i := 0; i < n; i++ {
		if cntPos[i] > 0 {
			stats.StdPos[i] = float32(math.Sqrt(devPos[i] / float64(cntPos[i])))
		}
		if cntNeg[i] > 0 {
			stats.StdNeg[i] = float32(math.Sqrt(devNeg[i] / float64(cntNeg[i])))
		}
	}

	return stats, nil
}
