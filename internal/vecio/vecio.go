// Package vecio reads and writes the fvecs/ivecs vector file formats:
// each row is a little-endian int32 dimension followed by that many
// little-endian float32 (fvecs) or int32 (ivecs) values.
package vecio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mislam5285/gqr/pkg/lsh"
)

// ErrBadRow is returned when a row header is inconsistent with the
// rest of the file.
var ErrBadRow = errors.New("vecio: inconsistent row")

// ReadFvecs loads an entire fvecs file into a row-major matrix. All
// rows must share one dimension.
func ReadFvecs(path string) (*lsh.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var rows [][]float32
	dim := -1

	for {
		var d int32
		if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if d < 1 {
			return nil, fmt.Errorf("%w: dimension %d in %s", ErrBadRow, d, path)
		}
		if dim == -1 {
			dim = int(d)
		} else if int(d) != dim {
			return nil, fmt.Errorf("%w: dimension %d after %d in %s", ErrBadRow, d, dim, path)
		}

		row := make([]float32, d)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file %s", ErrBadRow, path)
	}
	return lsh.MatrixFromRows(rows)
}

// WriteFvecs writes a matrix to path in fvecs format.
func WriteFvecs(path string, m *lsh.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for i := 0; i < m.Len(); i++ {
		if err := binary.Write(w, binary.LittleEndian, int32(m.Dim())); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := binary.Write(w, binary.LittleEndian, m.Row(i)); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// ReadIvecs loads an entire ivecs file. Rows may differ in length.
func ReadIvecs(path string) ([][]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var rows [][]int32

	for {
		var d int32
		if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("%w: dimension %d in %s", ErrBadRow, d, path)
		}

		row := make([]int32, d)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// WriteIvecs writes integer rows to path in ivecs format.
func WriteIvecs(path string, rows [][]int32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, row := range rows {
		if err := binary.Write(w, binary.LittleEndian, int32(len(row))); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}
