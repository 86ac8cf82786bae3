package anova

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// helmert returns an orthonormal (l-1) x l contrast matrix whose rows span
// the subspace orthogonal to the unit vector. Row j compares level j+1
// against the mean of the first j levels.
func helmert(l int) *mat.Dense {
	m := mat.NewDense(l-1, l, nil)
	for j := 1; j < l; j++ {
		norm := math.Sqrt(float64(j * (j + 1)))
		for i := 0; i < j; i++ {
			m.Set(j-1, i, 1/norm)
		}
		m.Set(j-1, j, -float64(j)/norm)
	}
	return m
}

// meanRow returns the 1 x l unit-norm averaging row.
func meanRow(l int) *mat.Dense {
	m := mat.NewDense(1, l, nil)
	v := 1 / math.Sqrt(float64(l))
	for i := 0; i < l; i++ {
		m.Set(0, i, v)
	}
	return m
}

// kron computes the Kronecker product of two dense matrices. Later operands
// vary fastest, matching the cell enumeration where later factors cycle
// fastest.
func kron(a, b *mat.Dense) *mat.Dense {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	out := mat.NewDense(ra*rb, ca*cb, nil)
	for ia := 0; ia < ra; ia++ {
		for ja := 0; ja < ca; ja++ {
			v := a.At(ia, ja)
			for ib := 0; ib < rb; ib++ {
				for jb := 0; jb < cb; jb++ {
					out.Set(ia*rb+ib, ja*cb+jb, v*b.At(ib, jb))
				}
			}
		}
	}
	return out
}

// effectContrast builds the orthonormal contrast over the level combinations
// of the given factors: a helmert block for factors in the effect mask, the
// averaging row for the rest. factorIdx lists the factor indices the
// combination space ranges over (in factor order), levels their level counts.
func effectContrast(factorIdx []int, levels []int, mask uint) *mat.Dense {
	out := mat.NewDense(1, 1, []float64{1})
	for i, fi := range factorIdx {
		var block *mat.Dense
		if mask&(1<<uint(fi)) != 0 {
			block = helmert(levels[i])
		} else {
			block = meanRow(levels[i])
		}
		out = kron(out, block)
	}
	return out
}
