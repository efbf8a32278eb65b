package lsh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Persisted format, little-endian, no magic number or checksum:
//
//	header: M, L, D, N, S (five uint32; I is not persisted)
//	per table:
//	  rnd         N x uint32
//	  bucketCount uint32
//	  per bucket: id uint64, length uint32, length x uint32 members
//	  basis       N x D float32, row-major
//
// Bucket order follows map iteration and is unspecified; member order
// within a bucket is insertion order and round-trips exactly.

// Save writes the populated index to w.
func (idx *Index) Save(w io.Writer) error {
	if idx.state < statePopulated {
		return fmt.Errorf("%w: save requires a populated index, index is %s", ErrState, idx.state)
	}

	bw := bufio.NewWriter(w)
	p := idx.param

	header := []uint32{p.M, uint32(p.L), uint32(p.D), uint32(p.N), uint32(p.S)}
	for _, h := range header {
		if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("%w: writing header: %v", ErrIO, err)
		}
	}

	for k := 0; k < p.L; k++ {
		if err := binary.Write(bw, binary.LittleEndian, idx.rnd[k]); err != nil {
			return fmt.Errorf("%w: writing table %d rnd: %v", ErrIO, k, err)
		}

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(idx.tables[k]))); err != nil {
			return fmt.Errorf("%w: writing table %d bucket count: %v", ErrIO, k, err)
		}
		for bid, members := range idx.tables[k] {
			if err := binary.Write(bw, binary.LittleEndian, bid); err != nil {
				return fmt.Errorf("%w: writing table %d bucket id: %v", ErrIO, k, err)
			}
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(members))); err != nil {
				return fmt.Errorf("%w: writing table %d bucket length: %v", ErrIO, k, err)
			}
			if err := binary.Write(bw, binary.LittleEndian, members); err != nil {
				return fmt.Errorf("%w: writing table %d bucket members: %v", ErrIO, k, err)
			}
		}

		for _, row := range idx.bases[k] {
			if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
				return fmt.Errorf("%w: writing table %d basis: %v", ErrIO, k, err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flushing index: %v", ErrIO, err)
	}
	return nil
}

// SaveFile writes the populated index to path.
func (idx *Index) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIO, path, err)
	}
	if err := idx.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrIO, path, err)
	}
	return nil
}

// Load replaces the index with the stream's contents, leaving it
// immediately queryable. On any failure the index is reset to empty.
func (idx *Index) Load(r io.Reader) error {
	loaded, err := readIndex(bufio.NewReader(r))
	if err != nil {
		*idx = Index{}
		return err
	}
	*idx = *loaded
	return nil
}

// LoadFile loads the index from path. A missing or unreadable file is
// an error; the index is left empty on any failure.
func (idx *Index) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		*idx = Index{}
		return fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer f.Close()
	return idx.Load(f)
}

func readIndex(r io.Reader) (*Index, error) {
	var header [5]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, readErr("header", err)
		}
	}

	p := Parameter{
		M: header[0],
		L: int(header[1]),
		D: int(header[2]),
		N: int(header[3]),
		S: int(header[4]),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: header parameters: %v", ErrFormat, err)
	}

	idx := &Index{
		param:  p,
		bases:  make([][][]float32, p.L),
		rnd:    make([][]uint32, p.L),
		tables: make([]map[uint64][]uint32, p.L),
	}

	for k := 0; k < p.L; k++ {
		rnd := make([]uint32, p.N)
		if err := binary.Read(r, binary.LittleEndian, rnd); err != nil {
			return nil, readErr("rnd", err)
		}
		idx.rnd[k] = rnd

		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, readErr("bucket count", err)
		}
		table := make(map[uint64][]uint32, count)
		for b := uint32(0); b < count; b++ {
			var bid uint64
			if err := binary.Read(r, binary.LittleEndian, &bid); err != nil {
				return nil, readErr("bucket id", err)
			}
			if _, dup := table[bid]; dup {
				return nil, fmt.Errorf("%w: duplicate bucket id %#x", ErrFormat, bid)
			}
			var length uint32
			if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
				return nil, readErr("bucket length", err)
			}
			members := make([]uint32, length)
			if err := binary.Read(r, binary.LittleEndian, members); err != nil {
				return nil, readErr("bucket members", err)
			}
			table[bid] = members
		}
		idx.tables[k] = table

		basis := make([][]float32, p.N)
		for i := range basis {
			row := make([]float32, p.D)
			if err := binary.Read(r, binary.LittleEndian, row); err != nil {
				return nil, readErr("basis", err)
			}
			for _, f := range row {
				if v := float64(f); math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("%w: non-finite basis value", ErrFormat)
				}
			}
			basis[i] = row
		}
		idx.bases[k] = basis
	}

	idx.state = statePopulated
	return idx, nil
}

// readErr classifies a binary.Read failure: a truncated stream is a
// format inconsistency, anything else an I/O failure.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short read in %s", ErrFormat, what)
	}
	return fmt.Errorf("%w: reading %s: %v", ErrIO, what, err)
}
