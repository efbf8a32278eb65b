package lsh

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
)

// trainedIndex trains and populates an index over Gaussian data with a
// fixed seed.
func trainedIndex(t *testing.T, p Parameter, rows int, seed int64) (*Index, *Matrix) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	data := gaussianMatrix(rng, rows, p.D)

	idx := New()
	if err := idx.Reset(p); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := idx.TrainAll(context.Background(), data, TrainOptions{Seed: seed}); err != nil {
		t.Fatalf("TrainAll failed: %v", err)
	}
	if err := idx.Hash(context.Background(), data, nil); err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return idx, data
}

// collectingProber records every visited row of the buckets it is fed.
type collectingProber struct {
	buckets []struct {
		table  int
		bucket uint64
	}
	pos     int
	visited []uint32
}

func (p *collectingProber) HasNextBucket() bool { return p.pos < len(p.buckets) }
func (p *collectingProber) NextBucket() (int, uint64) {
	b := p.buckets[p.pos]
	p.pos++
	return b.table, b.bucket
}
func (p *collectingProber) Visit(row uint32) { p.visited = append(p.visited, row) }
func (p *collectingProber) ItemsProbed() int { return len(p.visited) }

func (p *collectingProber) add(table int, bucket uint64) {
	p.buckets = append(p.buckets, struct {
		table  int
		bucket uint64
	}{table, bucket})
}

func TestHashCoverage(t *testing.T) {
	p := Parameter{M: 8, L: 2, D: 4, N: 3, S: 8, I: 3}
	idx, _ := trainedIndex(t, p, 16, 42)

	for k := 0; k < p.L; k++ {
		seen := make(map[uint32]int)
		total := 0
		for bid, members := range idx.Buckets(k) {
			if bid >= 1<<uint(p.N) {
				t.Errorf("table %d bucket id %d exceeds %d bits", k, bid, p.N)
			}
			for _, row := range members {
				seen[row]++
				total++
			}
		}
		if total != 16 {
			t.Errorf("table %d holds %d rows, want 16", k, total)
		}
		for row, count := range seen {
			if count != 1 {
				t.Errorf("table %d row %d appears %d times", k, row, count)
			}
		}
	}
}

func TestInsertAppendsToEveryTable(t *testing.T) {
	p := Parameter{M: 8, L: 3, D: 4, N: 2, S: 4, I: 0}
	idx := identityIndex(t, p)

	v := []float32{1, -1, 0.5, 2}
	if err := idx.Insert(7, v); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for k := 0; k < p.L; k++ {
		bid, err := idx.BucketID(k, v)
		if err != nil {
			t.Fatalf("BucketID failed: %v", err)
		}
		members := idx.Buckets(k)[bid]
		if len(members) != 1 || members[0] != 7 {
			t.Errorf("table %d bucket %d members = %v, want [7]", k, bid, members)
		}
	}
}

func TestInsertRequiresTrained(t *testing.T) {
	idx := New()
	if err := idx.Reset(Parameter{M: 8, L: 1, D: 4, N: 2, S: 4}); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := idx.Insert(0, make([]float32, 4)); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState, got %v", err)
	}
}

func TestHashRequiresTrained(t *testing.T) {
	idx := New()
	if err := idx.Reset(Parameter{M: 8, L: 1, D: 4, N: 2, S: 4}); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	data := NewMatrix(4, 4)
	if err := idx.Hash(context.Background(), data, nil); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState, got %v", err)
	}
}

func TestHashProgress(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 2, S: 4, I: 0}
	idx := identityIndex(t, p)
	rng := rand.New(rand.NewSource(17))
	data := gaussianMatrix(rng, 25, p.D)

	ticks := 0
	if err := idx.Hash(context.Background(), data, ProgressFunc(func() { ticks++ })); err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if ticks != 25 {
		t.Errorf("progress ticked %d times, want 25", ticks)
	}
}

func TestHashCancellation(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 2, S: 4, I: 0}
	idx := identityIndex(t, p)
	rng := rand.New(rand.NewSource(19))
	data := gaussianMatrix(rng, 100, p.D)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := idx.Hash(ctx, data, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProbeMissingBucket(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 3, S: 8, I: 0}
	idx, _ := trainedIndex(t, p, 16, 7)

	// Find an id with no bucket.
	var missing uint64
	for missing = 0; missing < 8; missing++ {
		if _, ok := idx.Buckets(0)[missing]; !ok {
			break
		}
	}
	if missing == 8 {
		t.Skip("all 8 buckets occupied")
	}

	pr := &collectingProber{}
	n, err := idx.Probe(0, missing, pr)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if n != 0 || len(pr.visited) != 0 {
		t.Errorf("missing bucket probed %d rows", len(pr.visited))
	}
}

func TestProbeInsertionOrder(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 2, S: 4, I: 0}
	idx := identityIndex(t, p)

	v := []float32{1, 1, 0, 0}
	for _, row := range []uint32{3, 1, 4, 1, 5} {
		if err := idx.Insert(row, v); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	bid, err := idx.BucketID(0, v)
	if err != nil {
		t.Fatalf("BucketID failed: %v", err)
	}
	pr := &collectingProber{}
	n, err := idx.Probe(0, bid, pr)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("Probe returned %d, want 5", n)
	}
	want := []uint32{3, 1, 4, 1, 5}
	for i, row := range want {
		if pr.visited[i] != row {
			t.Fatalf("visit order %v, want %v", pr.visited, want)
		}
	}
}

// A prober enumerating every bucket of table 0 must surface a query
// equal to an inserted row.
func TestTopKSurfacesInsertedRow(t *testing.T) {
	p := Parameter{M: 64, L: 4, D: 8, N: 5, S: 64, I: 10}
	idx, data := trainedIndex(t, p, 1024, 3)

	bids := make([]uint64, 0, len(idx.Buckets(0)))
	for bid := range idx.Buckets(0) {
		bids = append(bids, bid)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i] < bids[j] })

	pr := &collectingProber{}
	for _, bid := range bids {
		pr.add(0, bid)
	}

	if err := idx.TopK(data.Row(0), pr, 1<<30); err != nil {
		t.Fatalf("TopK failed: %v", err)
	}

	found := false
	for _, row := range pr.visited {
		if row == 0 {
			found = true
			break
		}
	}
	if !found {
		t.Error("row 0 not surfaced by a full sweep of table 0")
	}
}

func TestTopKStopsAtQuota(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 2, S: 4, I: 0}
	idx := identityIndex(t, p)

	v := []float32{1, 1, 0, 0}
	for row := uint32(0); row < 10; row++ {
		if err := idx.Insert(row, v); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	bid, _ := idx.BucketID(0, v)

	pr := &collectingProber{}
	pr.add(0, bid)
	pr.add(0, bid)
	pr.add(0, bid)

	// The first probe delivers 10 candidates, meeting the quota; the
	// remaining buckets must stay unvisited.
	if err := idx.TopK(v, pr, 5); err != nil {
		t.Fatalf("TopK failed: %v", err)
	}
	if len(pr.visited) != 10 {
		t.Errorf("visited %d candidates, want 10 (one bucket)", len(pr.visited))
	}
	if pr.pos != 1 {
		t.Errorf("probed %d buckets, want 1", pr.pos)
	}
}

func TestSingleBitBuckets(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 1, S: 64, I: 0}
	idx, data := trainedIndex(t, p, 256, 13)

	if n := idx.TableSize(0); n != 2 {
		t.Fatalf("N=1 produced %d buckets, want 2", n)
	}
	for bid := range idx.Buckets(0) {
		if bid > 1 {
			t.Errorf("N=1 bucket id %d, want 0 or 1", bid)
		}
	}

	neg := make([]float32, p.D)
	for trial := 0; trial < 10; trial++ {
		row := data.Row(trial)
		for d := range neg {
			neg[d] = -row[d]
		}
		a, err := idx.BucketID(0, row)
		if err != nil {
			t.Fatalf("BucketID failed: %v", err)
		}
		b, err := idx.BucketID(0, neg)
		if err != nil {
			t.Fatalf("BucketID failed: %v", err)
		}
		if a == b {
			t.Errorf("row %d and its negation share bucket %d", trial, a)
		}
	}
}

func TestTableStats(t *testing.T) {
	p := Parameter{M: 8, L: 2, D: 4, N: 2, S: 8, I: 0}
	idx := identityIndex(t, p)

	vecs := [][]float32{
		{1, 1, 0, 0},
		{1, 1, 0, 0},
		{-1, 1, 0, 0},
	}
	for i, v := range vecs {
		if err := idx.Insert(uint32(i), v); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	for k := 0; k < p.L; k++ {
		if got := idx.TableSize(k); got != 2 {
			t.Errorf("table %d size %d, want 2", k, got)
		}
		if got := idx.MaxBucketSize(k); got != 2 {
			t.Errorf("table %d max bucket %d, want 2", k, got)
		}
	}
	if got := idx.TotalEntries(); got != len(vecs)*p.L {
		t.Errorf("TotalEntries = %d, want %d", got, len(vecs)*p.L)
	}
}

func TestResetValidates(t *testing.T) {
	idx := New()

	bad := []Parameter{
		{M: 8, L: 0, D: 4, N: 2, S: 4},
		{M: 8, L: 1, D: 4, N: 0, S: 4},
		{M: 8, L: 1, D: 4, N: 65, S: 4},
		{M: 8, L: 1, D: 2, N: 4, S: 4},
		{M: 0, L: 1, D: 4, N: 2, S: 4},
		{M: 8, L: 1, D: 4, N: 2, S: 0},
		{M: 8, L: 1, D: 4, N: 2, S: 4, I: -1},
	}
	for _, p := range bad {
		if err := idx.Reset(p); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Reset(%+v): expected ErrInvalidParameter, got %v", p, err)
		}
	}
}
