package dist

import (
	"math"
)

// EffectPower is the output of the noncentrality transform: everything the
// result tables report beyond the raw test statistic.
type EffectPower struct {
	CohenF    float64
	Lambda    float64
	CriticalF float64
	Power     float64 // percent
}

// PowerFromEffectSize converts an effect's variance-explained proportion
// (partial eta-squared, or a multivariate statistic standing in for it) into
// Cohen's f, a noncentrality parameter, the critical F at alpha, and analytic
// power. This is the single transform shared by the ANOVA, MANOVA and
// marginal-means paths:
//
//	f^2     = eta / (1 - eta)
//	lambda  = f^2 * df2
//	Fcrit   = central-F quantile at 1-alpha
//	power%  = 100 * P(noncentral F(df1, df2, lambda) > Fcrit)
//
// eta = 1 propagates an infinite noncentrality (power 100) instead of
// dividing by zero; eta = 0 yields power alpha*100, the nominal Type-I rate.
func PowerFromEffectSize(eta, df1, df2, alpha float64) EffectPower {
	var f2 float64
	switch {
	case eta >= 1:
		f2 = math.Inf(1)
	case eta <= 0:
		f2 = 0
	default:
		f2 = eta / (1 - eta)
	}

	lambda := f2 * df2
	fcrit := FQuantile(1-alpha, df1, df2)

	ep := EffectPower{
		CohenF:    math.Sqrt(f2),
		Lambda:    lambda,
		CriticalF: fcrit,
	}
	if math.IsInf(lambda, 1) {
		ep.Power = 100
		return ep
	}
	ep.Power = 100 * NoncentralFSurvival(fcrit, df1, df2, lambda)
	return ep
}

// TTestPower computes two-sided power for a t-based contrast with
// noncentrality delta: the mass of the noncentral t outside the central
// critical values.
func TTestPower(delta, df, alpha float64) float64 {
	if df <= 0 {
		return 0
	}
	if math.IsInf(delta, 0) {
		return 100
	}
	tcrit := TQuantile(1-alpha/2, df)
	power := 1 - NoncentralTCDF(tcrit, df, delta) + NoncentralTCDF(-tcrit, df, delta)
	return 100 * clampUnit(power)
}
