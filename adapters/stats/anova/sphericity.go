package anova

import (
	"gonum.org/v1/gonum/mat"
)

// pooledWithinCov estimates the covariance of the within-subject cell vector,
// pooled over between groups: sum of within-group deviation cross-products
// divided by (subjects - groups).
func (l *layout) pooledWithinCov() *mat.SymDense {
	w := l.withins
	acc := mat.NewSymDense(w, nil)
	for g := 0; g < l.groups; g++ {
		means := make([]float64, w)
		for s := 0; s < l.n; s++ {
			for j := 0; j < w; j++ {
				means[j] += l.y[g][s][j]
			}
		}
		for j := range means {
			means[j] /= float64(l.n)
		}
		for s := 0; s < l.n; s++ {
			for i := 0; i < w; i++ {
				di := l.y[g][s][i] - means[i]
				for j := i; j < w; j++ {
					dj := l.y[g][s][j] - means[j]
					acc.SetSym(i, j, acc.At(i, j)+di*dj)
				}
			}
		}
	}
	dfe := float64(l.nsub - l.groups)
	for i := 0; i < w; i++ {
		for j := i; j < w; j++ {
			acc.SetSym(i, j, acc.At(i, j)/dfe)
		}
	}
	return acc
}

// epsilons computes the Greenhouse-Geisser and Huynh-Feldt sphericity
// epsilons for a within effect: the contrast-space covariance M = C S C' of
// the effect's orthonormal contrasts gives
//
//	gg = tr(M)^2 / (d * tr(M^2))
//	hf = ((dfe+1)*d*gg - 2) / (d*(dfe - d*gg))   capped at 1
//
// where d is the effect's degrees of freedom and dfe the subject residual df.
func (l *layout) epsilons(wMask uint, pooled *mat.SymDense) (gg, hf float64) {
	c := effectContrast(l.withinFactors, l.withinLevels, wMask)
	d, _ := c.Dims()
	if d < 2 {
		return 1, 1
	}

	var cs mat.Dense
	cs.Mul(c, pooled)
	var m mat.Dense
	m.Mul(&cs, c.T())

	tr, tr2 := 0.0, 0.0
	for i := 0; i < d; i++ {
		tr += m.At(i, i)
		for j := 0; j < d; j++ {
			tr2 += m.At(i, j) * m.At(i, j)
		}
	}
	if tr2 <= 0 {
		return 1, 1
	}

	dd := float64(d)
	gg = tr * tr / (dd * tr2)
	if gg < 1/dd {
		gg = 1 / dd
	}
	if gg > 1 {
		gg = 1
	}

	dfe := float64(l.nsub - l.groups)
	den := dd * (dfe - dd*gg)
	if den <= 0 {
		return gg, 1
	}
	hf = ((dfe+1)*dd*gg - 2) / den
	if hf > 1 {
		hf = 1
	}
	if hf < 1/dd {
		hf = 1 / dd
	}
	return gg, hf
}
