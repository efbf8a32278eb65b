package lsh

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// trainBasis learns the N x D projection basis of one table: the N
// leading principal components of the centered sample covariance,
// post-multiplied by an orthogonal rotation. The rotation starts as
// the U factor of a Gaussian matrix's SVD and is refined by up to I
// iterative-quantization steps minimizing ||sign(C R) - C R||^2.
//
// All randomness flows from rng, so a fixed seed reproduces the basis.
func trainBasis(rng *rand.Rand, data Dataset, p Parameter) ([][]float32, error) {
	rows := data.Len()
	if p.S > rows {
		return nil, fmt.Errorf("%w: sample size %d exceeds dataset cardinality %d", ErrInvalidParameter, p.S, rows)
	}
	if data.Dim() != p.D {
		return nil, fmt.Errorf("%w: dataset dimension %d, parameter D is %d", ErrDataset, data.Dim(), p.D)
	}

	selected, err := Select(rng, rows, p.S)
	if err != nil {
		return nil, err
	}

	// Gather the sample into an S x D matrix, rejecting non-finite input.
	x := mat.NewDense(p.S, p.D, nil)
	r := 0
	for i, sel := range selected {
		if !sel {
			continue
		}
		row := data.Row(i)
		for d, f := range row {
			v := float64(f)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d dim %d", ErrDataset, i, d)
			}
			x.Set(r, d, v)
		}
		r++
	}

	// Center the sample.
	for d := 0; d < p.D; d++ {
		var mean float64
		for i := 0; i < p.S; i++ {
			mean += x.At(i, d)
		}
		mean /= float64(p.S)
		for i := 0; i < p.S; i++ {
			x.Set(i, d, x.At(i, d)-mean)
		}
	}

	// Covariance of the centered sample.
	var cov mat.Dense
	cov.Mul(x.T(), x)
	divisor := float64(p.S - 1)
	if p.S == 1 {
		divisor = 1
	}
	cov.Scale(1/divisor, &cov)

	sym := mat.NewSymDense(p.D, nil)
	for i := 0; i < p.D; i++ {
		for j := i; j < p.D; j++ {
			sym.SetSym(i, j, cov.At(i, j))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, fmt.Errorf("%w: eigendecomposition did not converge", ErrTraining)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending; the N rightmost columns are the
	// leading components, kept in ascending-eigenvalue order.
	pcs := mat.NewDense(p.D, p.N, nil)
	for j := 0; j < p.N; j++ {
		src := p.D - p.N + j
		for i := 0; i < p.D; i++ {
			pcs.Set(i, j, vecs.At(i, src))
		}
	}

	// Centered projections of the sample.
	var c mat.Dense
	c.Mul(x, pcs)

	rot, err := seedRotation(rng, p.N)
	if err != nil {
		return nil, err
	}

	for it := 0; it < p.I; it++ {
		var v mat.Dense
		v.Mul(&c, rot)

		b := mat.NewDense(p.S, p.N, nil)
		for i := 0; i < p.S; i++ {
			for j := 0; j < p.N; j++ {
				if v.At(i, j) >= 0 {
					b.Set(i, j, 1)
				} else {
					b.Set(i, j, -1)
				}
			}
		}

		var btc mat.Dense
		btc.Mul(b.T(), &c)

		var svd mat.SVD
		if !svd.Factorize(&btc, mat.SVDThin) {
			return nil, fmt.Errorf("%w: SVD did not converge at iteration %d", ErrTraining, it)
		}
		var u, vt mat.Dense
		svd.UTo(&u)
		svd.VTo(&vt)

		var next mat.Dense
		next.Mul(&vt, u.T())
		rot = &next
	}

	// Row i of the stored basis is column i of P R.
	var pr mat.Dense
	pr.Mul(pcs, rot)

	basis := make([][]float32, p.N)
	for i := 0; i < p.N; i++ {
		basis[i] = make([]float32, p.D)
		for d := 0; d < p.D; d++ {
			basis[i][d] = float32(pr.At(d, i))
		}
	}
	return basis, nil
}

// seedRotation returns the orthonormal U factor of an n x n matrix of
// i.i.d. standard-normal entries.
func seedRotation(rng *rand.Rand, n int) (*mat.Dense, error) {
	g := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.Set(i, j, rng.NormFloat64())
		}
	}

	var svd mat.SVD
	if !svd.Factorize(g, mat.SVDThin) {
		return nil, fmt.Errorf("%w: rotation SVD did not converge", ErrTraining)
	}
	var u mat.Dense
	svd.UTo(&u)
	return &u, nil
}
