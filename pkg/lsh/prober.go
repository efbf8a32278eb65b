package lsh

// Prober is the candidate-discovery policy driven by TopK. It orders
// (table, bucket) pairs, receives every member of each probed bucket,
// and tracks how many candidates have been seen. Implementations
// typically wrap a scanner that scores the visited rows.
type Prober interface {
	// HasNextBucket reports whether another bucket remains to probe
	HasNextBucket() bool

	// NextBucket returns the next (table, bucket) pair to probe
	NextBucket() (table int, bucket uint64)

	// Visit is called once for every member of a probed bucket,
	// in insertion order
	Visit(row uint32)

	// ItemsProbed returns the number of candidates seen so far
	ItemsProbed() int
}

// Progress is notified once per row during bulk hashing. A nil
// Progress is permitted and ignored.
type Progress interface {
	Tick()
}

// ProgressFunc adapts a function to the Progress interface.
type ProgressFunc func()

// Tick implements Progress.
func (f ProgressFunc) Tick() { f() }
