package anova

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gopower/domain/core"
	"gopower/ports"
)

// multivariate runs the Pillai-trace test for every effect that involves a
// within-subject factor. Subject scores are projected onto the effect's
// orthonormal within contrasts; the hypothesis SSCP comes from the balanced
// cell-means model, the error SSCP from the pooled within-group deviations.
func (l *layout) multivariate(pooled *mat.SymDense) ([]ports.MultivariateEffect, error) {
	betweenMask := l.fullMask() &^ l.withinMask
	dfe := float64(l.nsub - l.groups)

	var out []ports.MultivariateEffect
	for _, mask := range l.effectMasks() {
		wE := mask & l.withinMask
		if wE == 0 {
			continue
		}
		bE := mask & betweenMask

		c := effectContrast(l.withinFactors, l.withinLevels, wE)
		d, _ := c.Dims()

		// Per-group means of the contrast scores z = C v.
		groupMeans := mat.NewDense(l.groups, d, nil)
		for g := 0; g < l.groups; g++ {
			for s := 0; s < l.n; s++ {
				for i := 0; i < d; i++ {
					z := 0.0
					for w := 0; w < l.withins; w++ {
						z += c.At(i, w) * l.y[g][s][w]
					}
					groupMeans.Set(g, i, groupMeans.At(g, i)+z/float64(l.n))
				}
			}
		}

		// Between-contrast L with orthonormal rows: hypothesis SSCP is
		// H = n (L M)'(L M) under the balanced cell-means model.
		lmat := effectContrast(l.betweenFactors, l.betweenLevels, bE)
		q, _ := lmat.Dims()
		var lm mat.Dense
		lm.Mul(lmat, groupMeans)
		var h mat.Dense
		h.Mul(lm.T(), &lm)
		h.Scale(float64(l.n), &h)

		// Error SSCP: E = dfe * C S C'.
		var cs mat.Dense
		cs.Mul(c, pooled)
		var e mat.Dense
		e.Mul(&cs, c.T())
		e.Scale(dfe, &e)

		var sum mat.Dense
		sum.Add(&h, &e)
		var solved mat.Dense
		if err := solved.Solve(&sum, &h); err != nil {
			return nil, fmt.Errorf("%w: H+E singular for effect %s", core.ErrSingularModel, l.label(mask))
		}
		pillai := 0.0
		for i := 0; i < d; i++ {
			pillai += solved.At(i, i)
		}

		s := float64(min(d, q))
		mm := (math.Abs(float64(d-q)) - 1) / 2
		nn := (dfe - float64(d) - 1) / 2
		df1 := s * (2*mm + s + 1)
		df2 := s * (2*nn + s + 1)
		approxF := math.Inf(1)
		if s-pillai > 1e-12 {
			approxF = (df2 / df1) * pillai / (s - pillai)
		}

		out = append(out, ports.MultivariateEffect{
			Label:     l.label(mask),
			Mask:      mask,
			Test:      "Pillai",
			Statistic: pillai,
			ApproxF:   approxF,
			NumDF:     df1,
			DenDF:     df2,
		})
	}
	return out, nil
}
