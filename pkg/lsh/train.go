package lsh

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mislam5285/gqr/pkg/observability"
)

// TrainOptions controls the parallel training driver.
type TrainOptions struct {
	// BatchSize caps the number of concurrently trained tables.
	// Zero trains one batch of all L tables.
	BatchSize int

	// Seed makes training reproducible: table k derives its RNG from
	// Seed and k. Zero draws an ambient seed from the clock, so
	// separate runs diverge.
	Seed int64
}

// tableSeed derives the per-table RNG seed. With an explicit base seed
// the derivation is deterministic; otherwise the clock provides
// process-global entropy and the table index splits the streams.
func tableSeed(base int64, table int) int64 {
	if base == 0 {
		base = time.Now().UnixNano()
	}
	return base ^ (int64(table+1) * 0x9E3779B97F4A7C15)
}

// TrainAll trains all L table bases from the dataset, running up to
// BatchSize workers concurrently and joining each batch before the
// next starts. Each worker owns its basis slot exclusively. On any
// failure every sibling is still joined, the first error is returned,
// and all partial bases are discarded.
func (idx *Index) TrainAll(ctx context.Context, data Dataset, opts TrainOptions) error {
	if idx.state != stateConfigured {
		return fmt.Errorf("%w: training requires a freshly configured index, index is %s", ErrState, idx.state)
	}
	if data.Len() == 0 {
		return fmt.Errorf("%w: empty dataset", ErrDataset)
	}

	p := idx.param
	batch := opts.BatchSize
	if batch <= 0 || batch > p.L {
		batch = p.L
	}

	start := time.Now()
	bases := make([][][]float32, p.L)
	rnds := make([][]uint32, p.L)

	for lo := 0; lo < p.L; lo += batch {
		hi := lo + batch
		if hi > p.L {
			hi = p.L
		}

		g, gctx := errgroup.WithContext(ctx)
		for k := lo; k < hi; k++ {
			k := k
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng := rand.New(rand.NewSource(tableSeed(opts.Seed, k)))
				basis, err := trainBasis(rng, data, p)
				if err != nil {
					return fmt.Errorf("table %d: %w", k, err)
				}
				bases[k] = basis

				rnd := make([]uint32, p.N)
				for i := range rnd {
					rnd[i] = uint32(rng.Intn(int(p.M)))
				}
				rnds[k] = rnd
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	idx.bases = bases
	idx.rnd = rnds
	idx.state = stateTrained
	observability.Infof("trained %d tables in %v (batch size %d)", p.L, time.Since(start), batch)
	return nil
}
