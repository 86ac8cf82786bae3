// Package anova fits balanced factorial ANOVA/MANOVA models to exact-moment
// datasets. The design is balanced by construction, so sums of squares come
// from the classical orthogonal decomposition over effect subsets rather than
// a general regression solver; error strata follow the mixed-model rule that
// a within part Ew is tested against its interaction with subjects.
package anova

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal/analysis/dist"
	"gopower/ports"
)

// Fitter implements ports.ModelFitter for balanced factorial designs.
type Fitter struct{}

// NewFitter creates the default fitting backend.
func NewFitter() *Fitter { return &Fitter{} }

var _ ports.ModelFitter = (*Fitter)(nil)

// layout reorganizes the wide dataset into subject-by-within-cell form.
type layout struct {
	spec    *design.Spec
	groups  int
	withins int
	n       int
	nsub    int
	cells   []design.Cell
	cellIdx [][]int       // [group][withinCell] -> cell index
	y       [][][]float64 // [group][subject][withinCell]

	withinMask     uint
	withinFactors  []int
	withinLevels   []int
	betweenFactors []int
	betweenLevels  []int
}

// Fit produces the univariate effect table, the error strata, and, for
// designs with a within-subject factor, the multivariate table.
func (f *Fitter) Fit(ctx context.Context, spec *design.Spec, ds *power.Dataset, correction power.Correction) (*ports.FitResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(ds.Wide) != spec.N || len(ds.Wide[0]) != spec.CellCount() {
		return nil, fmt.Errorf("%w: dataset does not match design dimensions", core.ErrInsufficientData)
	}

	l := newLayout(spec, ds)
	marg := l.marginMeans()
	subjMarg, grpMarg := l.subjectMargins()

	// Error strata: one per within-subset, mask 0 being subjects in groups.
	strata := make([]ports.ErrorStratum, 0)
	for sub := uint(0); sub <= l.withinMask; sub++ {
		if sub&^l.withinMask != 0 {
			continue
		}
		strata = append(strata, ports.ErrorStratum{
			WithinMask: sub,
			SS:         l.stratumSS(sub, subjMarg, grpMarg),
			DF:         l.stratumDF(sub),
		})
	}
	result := &ports.FitResult{
		Strata:    strata,
		CellMeans: marg[l.fullMask()],
		GrandMean: marg[0][0],
	}

	pooled := l.pooledWithinCov()

	for _, mask := range l.effectMasks() {
		wE := mask & l.withinMask
		stratum := result.Stratum(wE)
		if stratum == nil || stratum.DF <= 0 {
			return nil, fmt.Errorf("%w: no error stratum for effect %s", core.ErrInsufficientData, l.label(mask))
		}

		ss := l.effectSS(mask, marg)
		df1 := l.effectDF(mask)
		df2 := stratum.DF
		mse := stratum.SS / stratum.DF
		fstat := (ss / df1) / mse
		eta := ss / (ss + stratum.SS)

		eps := 1.0
		if correction != power.CorrectionNone && wE != 0 && l.effectDF(wE) >= 2 {
			gg, hf := l.epsilons(wE, pooled)
			if correction == power.CorrectionGG {
				eps = gg
			} else {
				eps = hf
			}
		}

		result.Effects = append(result.Effects, ports.AnovaEffect{
			Label:        l.label(mask),
			Mask:         mask,
			WithinMask:   wE,
			NumDF:        eps * df1,
			DenDF:        eps * df2,
			SS:           ss,
			ErrorSS:      stratum.SS,
			MSE:          mse,
			F:            fstat,
			PartialEtaSq: eta,
			PValue:       dist.FSurvivalPValue(fstat, eps*df1, eps*df2),
			Epsilon:      eps,
		})
	}

	if spec.HasWithin {
		mv, err := l.multivariate(pooled)
		if err != nil {
			return nil, err
		}
		result.Multivariate = mv
	}
	return result, nil
}

func newLayout(spec *design.Spec, ds *power.Dataset) *layout {
	l := &layout{
		spec:    spec,
		groups:  spec.BetweenGroupCount(),
		withins: spec.WithinCellCount(),
		n:       spec.N,
		cells:   spec.Cells,
	}
	l.nsub = l.groups * l.n
	for fi, fac := range spec.Factors {
		if fac.Within {
			l.withinMask |= 1 << uint(fi)
			l.withinFactors = append(l.withinFactors, fi)
			l.withinLevels = append(l.withinLevels, len(fac.Levels))
		} else {
			l.betweenFactors = append(l.betweenFactors, fi)
			l.betweenLevels = append(l.betweenLevels, len(fac.Levels))
		}
	}

	l.cellIdx = make([][]int, l.groups)
	for g := 0; g < l.groups; g++ {
		l.cellIdx[g] = make([]int, l.withins)
		for w := 0; w < l.withins; w++ {
			l.cellIdx[g][w] = int(spec.CellAt(g, w).ID)
		}
	}
	l.y = make([][][]float64, l.groups)
	for g := 0; g < l.groups; g++ {
		l.y[g] = make([][]float64, l.n)
		for s := 0; s < l.n; s++ {
			row := make([]float64, l.withins)
			for w := 0; w < l.withins; w++ {
				row[w] = ds.Wide[s][l.cellIdx[g][w]]
			}
			l.y[g][s] = row
		}
	}
	return l
}

func (l *layout) fullMask() uint {
	return (1 << uint(len(l.spec.Factors))) - 1
}

// effectMasks enumerates the 2^f - 1 effects: main effects first, then
// interactions in ascending order.
func (l *layout) effectMasks() []uint {
	masks := make([]uint, 0, l.fullMask())
	for m := uint(1); m <= l.fullMask(); m++ {
		masks = append(masks, m)
	}
	sort.Slice(masks, func(i, j int) bool {
		oi, oj := bits.OnesCount(masks[i]), bits.OnesCount(masks[j])
		if oi != oj {
			return oi < oj
		}
		return masks[i] < masks[j]
	})
	return masks
}

func (l *layout) label(mask uint) string {
	var parts []string
	for fi, fac := range l.spec.Factors {
		if mask&(1<<uint(fi)) != 0 {
			parts = append(parts, fac.Name)
		}
	}
	return strings.Join(parts, ":")
}

func (l *layout) effectDF(mask uint) float64 {
	df := 1.0
	for fi, fac := range l.spec.Factors {
		if mask&(1<<uint(fi)) != 0 {
			df *= float64(len(fac.Levels) - 1)
		}
	}
	return df
}

func (l *layout) stratumDF(wMask uint) float64 {
	return float64(l.groups*(l.n-1)) * l.effectDF(wMask)
}

// marginIndex maps a cell's level indices onto the mixed-radix index of its
// margin under the given factor mask.
func marginIndex(levelIdx []int, mask uint, factors []design.Factor) int {
	idx := 0
	for fi, fac := range factors {
		if mask&(1<<uint(fi)) != 0 {
			idx = idx*len(fac.Levels) + levelIdx[fi]
		}
	}
	return idx
}

func (l *layout) marginSize(mask uint) int {
	size := 1
	for fi, fac := range l.spec.Factors {
		if mask&(1<<uint(fi)) != 0 {
			size *= len(fac.Levels)
		}
	}
	return size
}

// marginMeans computes the marginal mean table for every factor subset,
// including the grand mean at mask 0 and the cell means at the full mask.
func (l *layout) marginMeans() map[uint][]float64 {
	k := len(l.cells)
	cellMeans := make([]float64, k)
	for g := 0; g < l.groups; g++ {
		for s := 0; s < l.n; s++ {
			for w := 0; w < l.withins; w++ {
				cellMeans[l.cellIdx[g][w]] += l.y[g][s][w]
			}
		}
	}
	for i := range cellMeans {
		cellMeans[i] /= float64(l.n)
	}

	marg := make(map[uint][]float64)
	for mask := uint(0); mask <= l.fullMask(); mask++ {
		size := l.marginSize(mask)
		sums := make([]float64, size)
		for _, c := range l.cells {
			sums[marginIndex(c.LevelIdx, mask, l.spec.Factors)] += cellMeans[c.ID]
		}
		per := float64(k / size)
		for i := range sums {
			sums[i] /= per
		}
		marg[mask] = sums
	}
	return marg
}

// subjectMargins computes, for every within-factor subset, each subject's
// margin means and their per-group averages. These feed the error strata.
func (l *layout) subjectMargins() (map[uint][][][]float64, map[uint][][]float64) {
	subj := make(map[uint][][][]float64)
	grp := make(map[uint][][]float64)
	for sub := uint(0); sub <= l.withinMask; sub++ {
		if sub&^l.withinMask != 0 {
			continue
		}
		size := l.marginSize(sub)
		per := float64(l.withins / size)
		sm := make([][][]float64, l.groups)
		gm := make([][]float64, l.groups)
		for g := 0; g < l.groups; g++ {
			sm[g] = make([][]float64, l.n)
			gm[g] = make([]float64, size)
			for s := 0; s < l.n; s++ {
				acc := make([]float64, size)
				for w := 0; w < l.withins; w++ {
					c := l.cells[l.cellIdx[g][w]]
					acc[marginIndex(c.LevelIdx, sub, l.spec.Factors)] += l.y[g][s][w]
				}
				for u := range acc {
					acc[u] /= per
					gm[g][u] += acc[u]
				}
				sm[g][s] = acc
			}
			for u := range gm[g] {
				gm[g][u] /= float64(l.n)
			}
		}
		subj[sub] = sm
		grp[sub] = gm
	}
	return subj, grp
}

// effectSS computes a fixed effect's sum of squares by Moebius inversion
// over the marginal-mean lattice, evaluated on full cells: each cell carries
// n observations, so SS = n * sum over cells of the effect estimate squared.
func (l *layout) effectSS(mask uint, marg map[uint][]float64) float64 {
	ss := 0.0
	order := bits.OnesCount(mask)
	for _, c := range l.cells {
		eff := 0.0
		for sub := mask; ; sub = (sub - 1) & mask {
			sign := 1.0
			if (order-bits.OnesCount(sub))%2 == 1 {
				sign = -1
			}
			eff += sign * marg[sub][marginIndex(c.LevelIdx, sub, l.spec.Factors)]
			if sub == 0 {
				break
			}
		}
		ss += eff * eff
	}
	return float64(l.n) * ss
}

// stratumSS computes an error stratum's sum of squares: the interaction of
// the within subset with subjects nested in groups (or, at mask 0, the
// subjects-within-groups stratum itself).
func (l *layout) stratumSS(wMask uint, subj map[uint][][][]float64, grp map[uint][][]float64) float64 {
	order := bits.OnesCount(wMask)
	ss := 0.0
	for g := 0; g < l.groups; g++ {
		for s := 0; s < l.n; s++ {
			for w := 0; w < l.withins; w++ {
				c := l.cells[l.cellIdx[g][w]]
				eff := 0.0
				for sub := wMask; ; sub = (sub - 1) & wMask {
					sign := 1.0
					if (order-bits.OnesCount(sub))%2 == 1 {
						sign = -1
					}
					u := marginIndex(c.LevelIdx, sub, l.spec.Factors)
					eff += sign * (subj[sub][g][s][u] - grp[sub][g][u])
					if sub == 0 {
						break
					}
				}
				ss += eff * eff
			}
		}
	}
	// Each within margin is covered withins/size times, which is exactly the
	// expansion the per-observation formulation needs; no extra multiplier.
	return ss
}
