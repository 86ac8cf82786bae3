// Package pairwise enumerates every unordered pair of design cells and
// computes the exact power of its mean-difference test. The covariance entry
// between the two cells decides the test: zero means the cells belong to
// different subjects (independent two-sample), nonzero means the same
// subjects produced both (paired).
package pairwise

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal/analysis/dist"
)

// Engine runs the cell-pair comparisons.
type Engine struct{}

// NewEngine creates a pairwise contrast engine.
func NewEngine() *Engine { return &Engine{} }

// Compare computes effect size and exact power for all C(k,2) cell pairs.
// Pairs are independent of one another and fan out concurrently; the result
// table is assembled in the canonical enumeration order regardless of
// completion order. No multiplicity correction is applied across pairs;
// each comparison is reported at the nominal alpha.
func (e *Engine) Compare(ctx context.Context, spec *design.Spec, ds *power.Dataset, alpha float64) ([]power.PairwiseResult, error) {
	k := spec.CellCount()
	results := make([]power.PairwiseResult, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			results = append(results, power.PairwiseResult{
				Label: spec.Cells[i].Label + "_" + spec.Cells[j].Label,
				CellA: spec.Cells[i].ID,
				CellB: spec.Cells[j].ID,
			})
		}
	}

	g, _ := errgroup.WithContext(ctx)
	for idx := range results {
		idx := idx
		g.Go(func() error {
			r := &results[idx]
			paired := spec.Sigma.At(int(r.CellA), int(r.CellB)) != 0
			r.Paired = paired

			x := column(ds, int(r.CellA))
			y := column(ds, int(r.CellB))
			if paired {
				r.EffectSize, r.Power = pairedPower(x, y, alpha)
			} else {
				r.EffectSize, r.Power = independentPower(x, y, alpha)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func column(ds *power.Dataset, j int) []float64 {
	out := make([]float64, len(ds.Wide))
	for i, row := range ds.Wide {
		out[i] = row[j]
	}
	return out
}

// independentPower computes Cohen's d from the pooled standard deviation and
// the exact power of the two-sample t test: df = n1+n2-2 and noncentrality
// d * sqrt(n1*n2/(n1+n2)).
func independentPower(x, y []float64, alpha float64) (d, pw float64) {
	n1, n2 := float64(len(x)), float64(len(y))
	m1, v1 := meanVar(x)
	m2, v2 := meanVar(y)

	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0, alpha * 100
	}
	d = (m1 - m2) / pooled
	delta := d * math.Sqrt(n1*n2/(n1+n2))
	return d, dist.TTestPower(delta, n1+n2-2, alpha)
}

// pairedPower computes Cohen's d_z from the difference scores and the exact
// power of the paired t test: df = n-1 and noncentrality d_z * sqrt(n).
func pairedPower(x, y []float64, alpha float64) (dz, pw float64) {
	n := float64(len(x))
	diff := make([]float64, len(x))
	for i := range x {
		diff[i] = x[i] - y[i]
	}
	m, v := meanVar(diff)
	sd := math.Sqrt(v)
	if sd == 0 {
		return 0, alpha * 100
	}
	dz = m / sd
	return dz, dist.TTestPower(dz*math.Sqrt(n), n-1, alpha)
}

func meanVar(x []float64) (mean, variance float64) {
	n := float64(len(x))
	for _, v := range x {
		mean += v
	}
	mean /= n
	for _, v := range x {
		variance += (v - mean) * (v - mean)
	}
	variance /= n - 1
	return mean, variance
}
