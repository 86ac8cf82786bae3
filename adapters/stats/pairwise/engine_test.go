package pairwise

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopower/adapters/stats/synth"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal/analysis/dist"
)

func makeDataset(t *testing.T, p design.Params, seed int64) (*design.Spec, *power.Dataset) {
	t.Helper()
	spec, err := design.New(p)
	require.NoError(t, err)
	ds, err := synth.New(rand.New(rand.NewSource(seed))).Generate(spec)
	require.NoError(t, err)
	return spec, ds
}

func TestCompareEnumeratesAllPairsInOrder(t *testing.T) {
	spec, ds := makeDataset(t, design.Params{Code: "2w*2w", N: 40, Mu: []float64{1, 0, 1, 0}, SD: []float64{2}, R: 0.8}, 1)

	results, err := NewEngine().Compare(context.Background(), spec, ds, 0.05)
	require.NoError(t, err)
	require.Len(t, results, 6)

	for idx, r := range results {
		assert.Less(t, int(r.CellA), int(r.CellB), "pair %d out of canonical order", idx)
		assert.True(t, r.Paired, "all-within design must yield paired tests")
	}
	assert.Equal(t, "a1_b1_a1_b2", results[0].Label)
	assert.Equal(t, "a2_b1_a2_b2", results[5].Label)
}

func TestIndependentPairMatchesClosedForm(t *testing.T) {
	// Between design, exact moments: d = 0.5, delta = d*sqrt(n/2).
	spec, ds := makeDataset(t, design.Params{Code: "2b", N: 20, Mu: []float64{1, 0}, SD: []float64{2}, R: 0}, 2)

	results, err := NewEngine().Compare(context.Background(), spec, ds, 0.05)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.False(t, r.Paired)
	assert.InDelta(t, 0.5, r.EffectSize, 1e-8)

	want := dist.TTestPower(0.5*math.Sqrt(10), 38, 0.05)
	assert.InDelta(t, want, r.Power, 1e-8)
}

func TestPairedPairMatchesClosedForm(t *testing.T) {
	// r = 0.5 with equal sds gives sd_diff = sd, so d_z = 0.5 and
	// delta = 0.5*sqrt(20).
	spec, ds := makeDataset(t, design.Params{Code: "2w", N: 20, Mu: []float64{1, 0}, SD: []float64{2}, R: 0.5}, 3)

	results, err := NewEngine().Compare(context.Background(), spec, ds, 0.05)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Paired)
	assert.InDelta(t, 0.5, r.EffectSize, 1e-8)

	want := dist.TTestPower(0.5*math.Sqrt(20), 19, 0.05)
	assert.InDelta(t, want, r.Power, 1e-8)
}

func TestEqualMeansPowerIsAlpha(t *testing.T) {
	spec, ds := makeDataset(t, design.Params{Code: "2b", N: 25, Mu: []float64{3, 3}, SD: []float64{1}, R: 0}, 4)

	results, err := NewEngine().Compare(context.Background(), spec, ds, 0.05)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 5.0, results[0].Power, 1e-6)
	assert.InDelta(t, 0.0, results[0].EffectSize, 1e-10)
}

func TestMixedDesignPairKinds(t *testing.T) {
	spec, ds := makeDataset(t, design.Params{Code: "2b*2w", N: 12, Mu: []float64{1, 0, 0.5, 0}, SD: []float64{1}, R: 0.4}, 5)

	results, err := NewEngine().Compare(context.Background(), spec, ds, 0.05)
	require.NoError(t, err)
	require.Len(t, results, 6)

	paired := 0
	for _, r := range results {
		if r.Paired {
			paired++
		}
	}
	// Same-group pairs (a1:b1,a1:b2) and (a2:b1,a2:b2) share subjects.
	assert.Equal(t, 2, paired)
}
