package app

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopower/adapters/stats/anova"
	"gopower/adapters/stats/emmeans"
	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
)

func newService() *ExactPowerService {
	return NewExactPowerService(anova.NewFitter(), emmeans.NewEngine(), nil)
}

func twoByTwoWithin(t *testing.T) *design.Spec {
	t.Helper()
	spec, err := design.New(design.Params{
		Code: "2w*2w",
		N:    40,
		Mu:   []float64{1, 0, 1, 0},
		SD:   []float64{2},
		R:    0.8,
	})
	require.NoError(t, err)
	return spec
}

func TestRunFullWithinAnalysis(t *testing.T) {
	bundle, err := newService().Run(context.Background(), ExactPowerRequest{
		Design:  twoByTwoWithin(t),
		Options: power.DefaultOptions(),
	})
	require.NoError(t, err)

	require.Len(t, bundle.MainEffects, 3)
	require.Len(t, bundle.Pairwise, 6)
	require.NotEmpty(t, bundle.Multivariate)

	for _, eff := range bundle.MainEffects {
		assert.GreaterOrEqual(t, eff.Power, 5.0-1e-6, "effect %s", eff.Effect)
		assert.LessOrEqual(t, eff.Power, 100.0, "effect %s", eff.Effect)
	}
	for _, p := range bundle.Pairwise {
		assert.GreaterOrEqual(t, p.Power, 5.0-1e-6, "pair %s", p.Label)
		assert.LessOrEqual(t, p.Power, 100.0, "pair %s", p.Label)
	}

	// Only b separates the means; its omnibus power must dominate a's,
	// which tests a null effect and sits at the alpha floor.
	byLabel := map[string]power.EffectResult{}
	for _, eff := range bundle.MainEffects {
		byLabel[eff.Effect] = eff
	}
	assert.InDelta(t, 5.0, byLabel["a"].Power, 1e-6)
	assert.Greater(t, byLabel["b"].Power, 90.0)

	assert.NotZero(t, bundle.ID)
	assert.False(t, bundle.CreatedAt.IsZero())
	assert.Len(t, bundle.Plot.Cells, 4)
}

func TestRunSeedDeterminism(t *testing.T) {
	svc := newService()
	req := ExactPowerRequest{Design: twoByTwoWithin(t), Options: power.DefaultOptions()}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, second.MainEffects, len(first.MainEffects))
	for i := range first.MainEffects {
		assert.Equal(t, first.MainEffects[i].F, second.MainEffects[i].F)
		assert.Equal(t, first.MainEffects[i].Power, second.MainEffects[i].Power)
	}
}

func TestRunMarginalMeansPass(t *testing.T) {
	opts := power.DefaultOptions()
	opts.EMM = true
	opts.EMMModel = power.EMMUnivariate
	opts.Contrast = power.ContrastPairwise

	bundle, err := newService().Run(context.Background(), ExactPowerRequest{
		Design:  twoByTwoWithin(t),
		Options: opts,
	})
	require.NoError(t, err)
	// Grouping defaults to all factors: four margins, six pairs.
	require.Len(t, bundle.MarginalMeans, 6)
	for _, row := range bundle.MarginalMeans {
		assert.GreaterOrEqual(t, row.Power, 5.0-1e-6, "contrast %s", row.Contrast)
		assert.LessOrEqual(t, row.Power, 100.0, "contrast %s", row.Contrast)
		assert.InDelta(t, row.TRatio*row.TRatio/(row.TRatio*row.TRatio+row.DF), row.PartialEtaSq, 1e-10)
	}
}

func TestRunTwoGroupPathsAgree(t *testing.T) {
	// A one-way two-level between design is the same hypothesis in every
	// table: the omnibus F equals the squared pairwise t, and both report
	// identical power.
	spec, err := design.New(design.Params{
		Code: "2b",
		N:    20,
		Mu:   []float64{1, 0},
		SD:   []float64{2},
		R:    0,
	})
	require.NoError(t, err)

	bundle, err := newService().Run(context.Background(), ExactPowerRequest{
		Design:  spec,
		Options: power.DefaultOptions(),
	})
	require.NoError(t, err)

	require.Len(t, bundle.MainEffects, 1)
	require.Len(t, bundle.Pairwise, 1)
	eff := bundle.MainEffects[0]
	pair := bundle.Pairwise[0]

	// t = d*sqrt(n1*n2/(n1+n2)) on the pooled sd, so t^2 is the ANOVA F.
	tStat := pair.EffectSize * math.Sqrt(20.0*20.0/40.0)
	assert.InDelta(t, eff.F, tStat*tStat, 1e-8)
	assert.InDelta(t, 2.5, eff.F, 1e-8)
	assert.InDelta(t, eff.Power, pair.Power, 1e-6)
}

func TestRunRejectsBadOptions(t *testing.T) {
	svc := newService()
	spec := twoByTwoWithin(t)

	opts := power.DefaultOptions()
	opts.Alpha = 1.5
	_, err := svc.Run(context.Background(), ExactPowerRequest{Design: spec, Options: opts})
	assert.ErrorIs(t, err, core.ErrAlphaOutOfRange)

	opts = power.DefaultOptions()
	opts.Correction = power.Correction("bogus")
	_, err = svc.Run(context.Background(), ExactPowerRequest{Design: spec, Options: opts})
	assert.ErrorIs(t, err, core.ErrUnknownCorrection)

	opts = power.DefaultOptions()
	opts.EMM = true
	opts.EMMModel = power.EMMUnivariate
	opts.Contrast = power.ContrastType("tukey")
	_, err = svc.Run(context.Background(), ExactPowerRequest{Design: spec, Options: opts})
	assert.ErrorIs(t, err, core.ErrUnsupportedContrast)

	_, err = svc.Run(context.Background(), ExactPowerRequest{Design: nil, Options: power.DefaultOptions()})
	assert.ErrorIs(t, err, core.ErrInvalidDesign)
}

func TestRunRejectsUnequalCellSizes(t *testing.T) {
	spec := twoByTwoWithin(t)
	_, err := newService().Run(context.Background(), ExactPowerRequest{
		Design:  spec,
		Options: power.DefaultOptions(),
		CellNs:  []int{40, 40, 40, 35},
	})
	assert.ErrorIs(t, err, core.ErrInvalidDesign)
}

func TestRunBetweenDesignSkipsMultivariate(t *testing.T) {
	spec, err := design.New(design.Params{
		Code: "2b*2b",
		N:    10,
		Mu:   []float64{1, 0, 0, 1},
		SD:   []float64{1},
		R:    0,
	})
	require.NoError(t, err)

	bundle, err := newService().Run(context.Background(), ExactPowerRequest{
		Design:  spec,
		Options: power.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Empty(t, bundle.Multivariate)
	assert.Len(t, bundle.MainEffects, 3)
	assert.Len(t, bundle.Pairwise, 6)
}
