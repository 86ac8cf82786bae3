package anova

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"gopower/adapters/stats/synth"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/ports"
)

func fitDesign(t *testing.T, p design.Params, corr power.Correction) (*design.Spec, *ports.FitResult) {
	t.Helper()
	spec, err := design.New(p)
	if err != nil {
		t.Fatalf("design.New: %v", err)
	}
	ds, err := synth.New(rand.New(rand.NewSource(99))).Generate(spec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	fit, err := NewFitter().Fit(context.Background(), spec, ds, corr)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return spec, fit
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestOneWayBetweenKnownAnswer(t *testing.T) {
	// Exact moments make the table hand-derivable: cell means 0 and 1 with
	// sd 2 give SS_effect = 10, SS_error = 152, F = 2.5 on (1, 38).
	_, fit := fitDesign(t, design.Params{Code: "2b", N: 20, Mu: []float64{0, 1}, SD: []float64{2}, R: 0}, power.CorrectionNone)

	if len(fit.Effects) != 1 {
		t.Fatalf("effects = %d, want 1", len(fit.Effects))
	}
	eff := fit.Effects[0]
	if !near(eff.SS, 10, 1e-8) || !near(eff.ErrorSS, 152, 1e-6) {
		t.Errorf("SS = %v / %v, want 10 / 152", eff.SS, eff.ErrorSS)
	}
	if !near(eff.F, 2.5, 1e-8) {
		t.Errorf("F = %v, want 2.5", eff.F)
	}
	if eff.NumDF != 1 || eff.DenDF != 38 {
		t.Errorf("df = (%v, %v), want (1, 38)", eff.NumDF, eff.DenDF)
	}
	if !near(eff.PartialEtaSq, 10.0/162.0, 1e-10) {
		t.Errorf("partial eta^2 = %v, want %v", eff.PartialEtaSq, 10.0/162.0)
	}
}

func TestOneWayWithinKnownAnswer(t *testing.T) {
	// Paired design: sd 2 per cell with r = 0.5 gives difference sd 2, so
	// F = (d_z * sqrt(n))^2 = 5 on (1, 19).
	_, fit := fitDesign(t, design.Params{Code: "2w", N: 20, Mu: []float64{0, 1}, SD: []float64{2}, R: 0.5}, power.CorrectionNone)

	eff := fit.Effects[0]
	if !near(eff.F, 5, 1e-8) {
		t.Errorf("F = %v, want 5", eff.F)
	}
	if eff.NumDF != 1 || eff.DenDF != 19 {
		t.Errorf("df = (%v, %v), want (1, 19)", eff.NumDF, eff.DenDF)
	}

	// For a single 2-level within factor the Pillai trace equals partial
	// eta-squared and the approximate F equals the univariate F.
	if len(fit.Multivariate) != 1 {
		t.Fatalf("multivariate rows = %d, want 1", len(fit.Multivariate))
	}
	mv := fit.Multivariate[0]
	if !near(mv.Statistic, eff.PartialEtaSq, 1e-8) {
		t.Errorf("Pillai = %v, want %v", mv.Statistic, eff.PartialEtaSq)
	}
	if !near(mv.ApproxF, eff.F, 1e-8) {
		t.Errorf("approx F = %v, want %v", mv.ApproxF, eff.F)
	}
}

func TestTwoWayWithinEffectCount(t *testing.T) {
	_, fit := fitDesign(t, design.Params{Code: "2w*2w", N: 40, Mu: []float64{1, 0, 1, 0}, SD: []float64{2}, R: 0.8}, power.CorrectionNone)

	if len(fit.Effects) != 3 {
		t.Fatalf("effects = %d, want 3 (two mains, one interaction)", len(fit.Effects))
	}
	labels := []string{fit.Effects[0].Label, fit.Effects[1].Label, fit.Effects[2].Label}
	want := []string{"a", "b", "a:b"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("effect %d label = %q, want %q", i, labels[i], want[i])
		}
	}
	if len(fit.Multivariate) != 3 {
		t.Errorf("multivariate rows = %d, want 3", len(fit.Multivariate))
	}

	// a averages identical (1,0) profiles on both levels, so its effect is
	// exactly null; b carries the whole 1-vs-0 separation.
	if !near(fit.Effects[0].SS, 0, 1e-16) {
		t.Errorf("main effect a SS = %v, want 0", fit.Effects[0].SS)
	}
	if fit.Effects[1].SS <= 0 {
		t.Errorf("main effect b SS = %v, want > 0", fit.Effects[1].SS)
	}
}

func TestBetweenDesignHasNoMultivariate(t *testing.T) {
	_, fit := fitDesign(t, design.Params{Code: "2b*2b", N: 10, Mu: []float64{1, 0, 0, 1}, SD: []float64{1}, R: 0}, power.CorrectionNone)
	if len(fit.Multivariate) != 0 {
		t.Errorf("multivariate rows = %d, want 0 for pure between design", len(fit.Multivariate))
	}
	if len(fit.Effects) != 3 {
		t.Errorf("effects = %d, want 3", len(fit.Effects))
	}
}

func TestMixedDesignErrorStrata(t *testing.T) {
	spec, fit := fitDesign(t, design.Params{Code: "2b*2w", N: 15, Mu: []float64{1, 0, 0.5, 0}, SD: []float64{1}, R: 0.4}, power.CorrectionNone)

	// Between effect tested on subjects-within-groups: df = G(n-1) = 28.
	// Within and interaction effects tested on the within stratum, also 28.
	for _, eff := range fit.Effects {
		if eff.DenDF != 28 {
			t.Errorf("effect %s denominator df = %v, want 28", eff.Label, eff.DenDF)
		}
	}
	if got := spec.BetweenGroupCount(); got != 2 {
		t.Fatalf("groups = %d, want 2", got)
	}
}

func TestSphericityCompoundSymmetryGivesUnitEpsilon(t *testing.T) {
	// The exact-moment draw reproduces a compound-symmetric sigma exactly,
	// and compound symmetry satisfies sphericity, so GG must be 1.
	_, fit := fitDesign(t, design.Params{Code: "3w", N: 15, Mu: []float64{0, 0.5, 1}, SD: []float64{2}, R: 0.5}, power.CorrectionGG)

	eff := fit.Effects[0]
	if !near(eff.Epsilon, 1, 1e-8) {
		t.Errorf("GG epsilon = %v, want 1 under compound symmetry", eff.Epsilon)
	}
	if !near(eff.NumDF, 2, 1e-8) || !near(eff.DenDF, 28, 1e-6) {
		t.Errorf("corrected df = (%v, %v), want (2, 28)", eff.NumDF, eff.DenDF)
	}
}

func TestSphericityViolationShrinksDF(t *testing.T) {
	// Heterogeneous cell variances break sphericity; GG must fall below 1
	// and shrink both degrees of freedom without changing F.
	spec, err := design.New(design.Params{Code: "3w", N: 20, Mu: []float64{0, 0.4, 1}, SD: []float64{1, 2, 4}, R: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := synth.New(rand.New(rand.NewSource(5))).Generate(spec)
	if err != nil {
		t.Fatal(err)
	}

	plain, err := NewFitter().Fit(context.Background(), spec, ds, power.CorrectionNone)
	if err != nil {
		t.Fatal(err)
	}
	gg, err := NewFitter().Fit(context.Background(), spec, ds, power.CorrectionGG)
	if err != nil {
		t.Fatal(err)
	}
	hf, err := NewFitter().Fit(context.Background(), spec, ds, power.CorrectionHF)
	if err != nil {
		t.Fatal(err)
	}

	eps := gg.Effects[0].Epsilon
	if eps >= 1 || eps < 0.5 {
		t.Errorf("GG epsilon = %v, want within [1/2, 1)", eps)
	}
	if !near(gg.Effects[0].NumDF, eps*plain.Effects[0].NumDF, 1e-10) {
		t.Errorf("corrected numerator df mismatch")
	}
	if !near(gg.Effects[0].F, plain.Effects[0].F, 1e-10) {
		t.Errorf("F changed under correction: %v vs %v", gg.Effects[0].F, plain.Effects[0].F)
	}
	if hf.Effects[0].Epsilon < eps {
		t.Errorf("HF epsilon %v below GG %v", hf.Effects[0].Epsilon, eps)
	}
}
