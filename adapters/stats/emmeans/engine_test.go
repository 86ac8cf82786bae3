package emmeans

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopower/adapters/stats/anova"
	"gopower/adapters/stats/synth"
	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/ports"
)

func fitted(t *testing.T, p design.Params) (*design.Spec, *power.Dataset, *ports.FitResult) {
	t.Helper()
	spec, err := design.New(p)
	require.NoError(t, err)
	ds, err := synth.New(rand.New(rand.NewSource(7))).Generate(spec)
	require.NoError(t, err)
	fit, err := anova.NewFitter().Fit(context.Background(), spec, ds, power.CorrectionNone)
	require.NoError(t, err)
	return spec, ds, fit
}

func TestPairwiseContrastMatchesAnovaF(t *testing.T) {
	// With a single two-level between factor the lone pairwise contrast
	// reproduces the omnibus test: t^2 must equal the ANOVA F.
	spec, ds, fit := fitted(t, design.Params{Code: "2b", N: 20, Mu: []float64{0, 1}, SD: []float64{2}, R: 0})

	out, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastPairwise,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.InDelta(t, fit.Effects[0].F, c.TRatio*c.TRatio, 1e-8)
	assert.Equal(t, fit.Effects[0].DenDF, c.DF)
	assert.InDelta(t, -1.0, c.Estimate, 1e-10)
}

func TestRevpairwiseFlipsSigns(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "3b", N: 12, Mu: []float64{0, 0.5, 1}, SD: []float64{1}, R: 0})

	fwd, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastPairwise,
	})
	require.NoError(t, err)
	rev, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastRevPairwise,
	})
	require.NoError(t, err)

	require.Len(t, fwd, 3)
	require.Len(t, rev, 3)
	for i := range fwd {
		assert.InDelta(t, -fwd[i].Estimate, rev[i].Estimate, 1e-12)
		assert.InDelta(t, fwd[i].SE, rev[i].SE, 1e-12)
	}
}

func TestConsecFamilySize(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "4b", N: 10, Mu: []float64{0, 1, 2, 3}, SD: []float64{2}, R: 0})

	out, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastConsec,
	})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestPolyCapturesLinearTrendOnly(t *testing.T) {
	// Means increase linearly, so the linear contrast is nonzero and the
	// quadratic contrast is exactly null.
	spec, ds, fit := fitted(t, design.Params{Code: "3b", N: 15, Mu: []float64{0, 1, 2}, SD: []float64{1}, R: 0})

	out, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastPoly,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "linear", out[0].Label)
	assert.Equal(t, "quadratic", out[1].Label)
	assert.NotZero(t, out[0].Estimate)
	assert.InDelta(t, 0.0, out[1].Estimate, 1e-10)
}

func TestGroupingSelectsFactor(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "2b*3b", N: 8, Mu: []float64{0, 0, 0, 1, 1, 1}, SD: []float64{1}, R: 0})

	out, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:    power.EMMUnivariate,
		Family:   power.ContrastPairwise,
		Grouping: []string{"b"},
	})
	require.NoError(t, err)
	// Margins over b collapse a: three margins, three pairs, all null.
	require.Len(t, out, 3)
	for _, c := range out {
		assert.InDelta(t, 0.0, c.Estimate, 1e-10)
	}
}

func TestUnsupportedContrastRejected(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "2b", N: 10, Mu: []float64{0, 1}, SD: []float64{1}, R: 0})

	for _, family := range []power.ContrastType{"tukey", "dunnett"} {
		_, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
			Model:  power.EMMUnivariate,
			Family: family,
		})
		assert.ErrorIs(t, err, core.ErrUnsupportedContrast, "family %q", family)
	}
}

func TestUnknownModelAndGroupingRejected(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "2b", N: 10, Mu: []float64{0, 1}, SD: []float64{1}, R: 0})

	_, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMModel("mixed"),
		Family: power.ContrastPairwise,
	})
	assert.ErrorIs(t, err, core.ErrUnknownEMMModel)

	_, err = NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:    power.EMMUnivariate,
		Family:   power.ContrastPairwise,
		Grouping: []string{"nope"},
	})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestMultivariateModelOnWithinDesign(t *testing.T) {
	spec, ds, fit := fitted(t, design.Params{Code: "2w", N: 20, Mu: []float64{0, 1}, SD: []float64{2}, R: 0.5})

	uni, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMUnivariate,
		Family: power.ContrastPairwise,
	})
	require.NoError(t, err)
	mv, err := NewEngine().Contrasts(context.Background(), spec, ds, fit, ports.EMMRequest{
		Model:  power.EMMMultivariate,
		Family: power.ContrastPairwise,
	})
	require.NoError(t, err)

	require.Len(t, uni, 1)
	require.Len(t, mv, 1)
	// One two-level within factor: both models reduce to the paired t-test,
	// though they take the df from different places.
	assert.InDelta(t, uni[0].Estimate, mv[0].Estimate, 1e-10)
	assert.InDelta(t, uni[0].TRatio*uni[0].TRatio, fit.Effects[0].F, 1e-8)
}
