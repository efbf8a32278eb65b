package lsh

import "fmt"

// Dataset is the read-only matrix capability consumed by training,
// hashing, and statistics. Rows are row-major contiguous float32
// vectors; the dataset must stay live and unmodified for the duration
// of any call it is passed to.
type Dataset interface {
	// Len returns the number of rows
	Len() int

	// Dim returns the vector dimension
	Dim() int

	// Row returns row i. Callers must not modify the returned slice.
	Row(i int) []float32
}

// Matrix is an in-memory row-major Dataset backed by a single
// contiguous allocation.
type Matrix struct {
	rows int
	dim  int
	data []float32
}

// NewMatrix allocates a zeroed rows x dim matrix.
func NewMatrix(rows, dim int) *Matrix {
	return &Matrix{
		rows: rows,
		dim:  dim,
		data: make([]float32, rows*dim),
	}
}

// MatrixFromRows copies the given rows into a new matrix. All rows
// must share one dimension.
func MatrixFromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrDataset)
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional rows", ErrDataset)
	}
	m := NewMatrix(len(rows), dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrDataset, i, len(r), dim)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return m.rows }

// Dim returns the vector dimension.
func (m *Matrix) Dim() int { return m.dim }

// Row returns row i as a slice into the backing array.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.dim : (i+1)*m.dim]
}

// SetRow copies v into row i. Panics if v has the wrong length.
func (m *Matrix) SetRow(i int, v []float32) {
	if len(v) != m.dim {
		panic(fmt.Sprintf("lsh: SetRow dimension %d, want %d", len(v), m.dim))
	}
	copy(m.Row(i), v)
}
