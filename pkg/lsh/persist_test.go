package lsh

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	p := Parameter{M: 8, L: 2, D: 4, N: 3, S: 8, I: 3}
	idx, _ := trainedIndex(t, p, 16, 42)

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := New()
	if err := loaded.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// I is not persisted.
	want := p
	want.I = 0
	if loaded.Param() != want {
		t.Fatalf("loaded parameters %+v, want %+v", loaded.Param(), want)
	}

	for k := 0; k < p.L; k++ {
		for i, r := range idx.rnd[k] {
			if loaded.rnd[k][i] != r {
				t.Fatalf("table %d rnd[%d] = %d, want %d", k, i, loaded.rnd[k][i], r)
			}
		}

		for i := 0; i < p.N; i++ {
			for d := 0; d < p.D; d++ {
				if loaded.bases[k][i][d] != idx.bases[k][i][d] {
					t.Fatalf("table %d basis[%d][%d] differs after round trip", k, i, d)
				}
			}
		}

		if len(loaded.tables[k]) != len(idx.tables[k]) {
			t.Fatalf("table %d has %d buckets, want %d", k, len(loaded.tables[k]), len(idx.tables[k]))
		}
		for bid, members := range idx.tables[k] {
			got, ok := loaded.tables[k][bid]
			if !ok {
				t.Fatalf("table %d missing bucket %d after round trip", k, bid)
			}
			if len(got) != len(members) {
				t.Fatalf("table %d bucket %d has %d members, want %d", k, bid, len(got), len(members))
			}
			for i := range members {
				if got[i] != members[i] {
					t.Fatalf("table %d bucket %d member order differs at %d", k, bid, i)
				}
			}
		}
	}

	// The loaded index is immediately queryable.
	pr := &collectingProber{}
	for bid := range loaded.Buckets(0) {
		pr.add(0, bid)
	}
	if err := loaded.TopK(make([]float32, p.D), pr, 1); err != nil {
		t.Fatalf("TopK on loaded index failed: %v", err)
	}
}

func TestSaveLoadFile(t *testing.T) {
	p := Parameter{M: 8, L: 1, D: 4, N: 2, S: 8, I: 0}
	idx, _ := trainedIndex(t, p, 16, 5)

	path := filepath.Join(t.TempDir(), "test.index")
	if err := idx.SaveFile(path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	loaded := New()
	if err := loaded.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.TableSize(0) != idx.TableSize(0) {
		t.Errorf("loaded table size %d, want %d", loaded.TableSize(0), idx.TableSize(0))
	}
}

func TestLoadMissingFile(t *testing.T) {
	idx := New()
	err := idx.LoadFile(filepath.Join(t.TempDir(), "absent.index"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
	if idx.state != stateEmpty {
		t.Errorf("failed load left index %s, want empty", idx.state)
	}
}

func TestLoadTruncated(t *testing.T) {
	p := Parameter{M: 8, L: 2, D: 4, N: 3, S: 8, I: 0}
	idx, _ := trainedIndex(t, p, 16, 21)

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-1]

	loaded := New()
	err := loaded.Load(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("expected error on truncated stream")
	}
	if !errors.Is(err, ErrFormat) && !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrFormat or ErrIO, got %v", err)
	}
	if loaded.state != stateEmpty {
		t.Errorf("failed load left index %s, want empty", loaded.state)
	}
}

func TestLoadBadHeader(t *testing.T) {
	// A header announcing N = 100 cannot describe a valid index.
	var buf bytes.Buffer
	for _, v := range []byte{
		8, 0, 0, 0, // M
		1, 0, 0, 0, // L
		4, 0, 0, 0, // D
		100, 0, 0, 0, // N
		4, 0, 0, 0, // S
	} {
		buf.WriteByte(v)
	}

	idx := New()
	err := idx.Load(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
	if idx.state != stateEmpty {
		t.Errorf("failed load left index %s, want empty", idx.state)
	}
}

func TestSaveRequiresPopulated(t *testing.T) {
	idx := New()
	if err := idx.Reset(Parameter{M: 8, L: 1, D: 4, N: 2, S: 4}); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	var buf bytes.Buffer
	if err := idx.Save(&buf); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState, got %v", err)
	}
}
