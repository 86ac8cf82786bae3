package dist

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFQuantileMatchesCDF(t *testing.T) {
	cases := []struct{ p, df1, df2 float64 }{
		{0.95, 1, 38},
		{0.95, 3, 117},
		{0.99, 2, 20},
		{0.50, 5, 5},
	}
	for _, c := range cases {
		q := FQuantile(c.p, c.df1, c.df2)
		back := FCDF(q, c.df1, c.df2)
		if !almostEqual(back, c.p, 1e-9) {
			t.Errorf("FCDF(FQuantile(%v, %v, %v)) = %v, want %v", c.p, c.df1, c.df2, back, c.p)
		}
	}
}

func TestFQuantileKnownValue(t *testing.T) {
	// qf(0.95, 1, 38) from R
	q := FQuantile(0.95, 1, 38)
	if !almostEqual(q, 4.098172, 1e-4) {
		t.Errorf("FQuantile(0.95, 1, 38) = %v, want 4.098172", q)
	}
}

func TestNoncentralFCDFZeroLambdaIsCentral(t *testing.T) {
	fDist := distuv.F{D1: 3, D2: 30}
	for _, x := range []float64{0.1, 0.5, 1, 2, 4, 10} {
		got := NoncentralFCDF(x, 3, 30, 0)
		want := fDist.CDF(x)
		if !almostEqual(got, want, 1e-12) {
			t.Errorf("NoncentralFCDF(%v, 3, 30, 0) = %v, want %v", x, got, want)
		}
	}
}

func TestNoncentralFCDFMonotoneInLambda(t *testing.T) {
	// Larger noncentrality pushes mass to the right: CDF at a fixed point
	// must be non-increasing in lambda.
	prev := 1.0
	for _, lambda := range []float64{0, 0.5, 1, 2, 5, 10, 50, 200} {
		p := NoncentralFCDF(4.0, 2, 40, lambda)
		if p > prev+1e-12 {
			t.Errorf("CDF increased with lambda: lambda=%v p=%v prev=%v", lambda, p, prev)
		}
		prev = p
	}
}

func TestNoncentralFCDFLargeLambdaStable(t *testing.T) {
	// Mode-centered summation must not underflow for large noncentrality.
	p := NoncentralFCDF(2.0, 1, 100, 800)
	if p < 0 || p > 1e-6 {
		t.Errorf("NoncentralFCDF with lambda=800 = %v, want ~0", p)
	}
	if math.IsNaN(p) {
		t.Error("NoncentralFCDF returned NaN for large lambda")
	}
}

func TestNoncentralTCDFZeroDeltaIsCentral(t *testing.T) {
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 12}
	for _, x := range []float64{-3, -1, 0, 0.5, 2, 4} {
		got := NoncentralTCDF(x, 12, 0)
		want := tDist.CDF(x)
		if !almostEqual(got, want, 1e-10) {
			t.Errorf("NoncentralTCDF(%v, 12, 0) = %v, want %v", x, got, want)
		}
	}
}

func TestNoncentralTReflection(t *testing.T) {
	for _, c := range []struct{ t, df, delta float64 }{
		{1.5, 10, 2}, {0.3, 25, -1}, {2.8, 38, 3.16},
	} {
		lhs := NoncentralTCDF(c.t, c.df, c.delta)
		rhs := 1 - NoncentralTCDF(-c.t, c.df, -c.delta)
		if !almostEqual(lhs, rhs, 1e-10) {
			t.Errorf("reflection identity violated at %+v: %v vs %v", c, lhs, rhs)
		}
	}
}

func TestNoncentralTAgreesWithNoncentralF(t *testing.T) {
	// T ~ noncentral t(df, delta)  =>  T^2 ~ noncentral F(1, df, delta^2),
	// so P(|T| <= t) must match the F CDF at t^2.
	for _, c := range []struct{ t, df, delta float64 }{
		{1.2, 20, 1.5}, {2.5, 38, 2.0}, {0.7, 9, 0.5}, {3.0, 60, 3.5},
	} {
		fromT := NoncentralTCDF(c.t, c.df, c.delta) - NoncentralTCDF(-c.t, c.df, c.delta)
		fromF := NoncentralFCDF(c.t*c.t, 1, c.df, c.delta*c.delta)
		if !almostEqual(fromT, fromF, 1e-8) {
			t.Errorf("t/F consistency at %+v: %v vs %v", c, fromT, fromF)
		}
	}
}

func TestPowerBoundaries(t *testing.T) {
	// Zero effect: power equals the nominal Type-I rate.
	ep := PowerFromEffectSize(0, 1, 38, 0.05)
	if !almostEqual(ep.Power, 5.0, 1e-6) {
		t.Errorf("power at eta=0: %v, want 5.0", ep.Power)
	}

	// Saturated effect: infinite noncentrality, certain rejection.
	ep = PowerFromEffectSize(1, 1, 38, 0.05)
	if !math.IsInf(ep.Lambda, 1) {
		t.Errorf("lambda at eta=1: %v, want +Inf", ep.Lambda)
	}
	if ep.Power != 100 {
		t.Errorf("power at eta=1: %v, want 100", ep.Power)
	}

	// Near-saturated effect approaches 100 from below.
	ep = PowerFromEffectSize(0.9999, 1, 38, 0.05)
	if ep.Power < 99.99 || ep.Power > 100 {
		t.Errorf("power at eta=0.9999: %v", ep.Power)
	}
}

func TestPowerMonotoneInEta(t *testing.T) {
	prev := -1.0
	for _, eta := range []float64{0, 0.01, 0.05, 0.1, 0.3, 0.5, 0.8, 0.95} {
		ep := PowerFromEffectSize(eta, 2, 50, 0.05)
		if ep.Power < prev-1e-9 {
			t.Errorf("power decreased in eta at %v: %v < %v", eta, ep.Power, prev)
		}
		prev = ep.Power
	}
}

func TestPowerMonotoneInDenominatorDF(t *testing.T) {
	prev := -1.0
	for _, df2 := range []float64{10, 20, 40, 80, 160, 320} {
		ep := PowerFromEffectSize(0.06, 1, df2, 0.05)
		if ep.Power < prev-1e-9 {
			t.Errorf("power decreased in df2 at %v: %v < %v", df2, ep.Power, prev)
		}
		prev = ep.Power
	}
}

func TestTTestPowerBoundaries(t *testing.T) {
	// No effect: two-sided rejection rate equals alpha.
	p := TTestPower(0, 38, 0.05)
	if !almostEqual(p, 5.0, 1e-6) {
		t.Errorf("t power at delta=0: %v, want 5.0", p)
	}

	// Large effects saturate.
	p = TTestPower(50, 38, 0.05)
	if !almostEqual(p, 100, 1e-6) {
		t.Errorf("t power at delta=50: %v, want 100", p)
	}

	// Sign of the effect does not matter for two-sided power.
	if !almostEqual(TTestPower(1.8, 30, 0.05), TTestPower(-1.8, 30, 0.05), 1e-9) {
		t.Error("two-sided power not symmetric in delta")
	}
}
