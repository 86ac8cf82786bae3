package ports

import (
	"context"

	"gopower/domain/design"
	"gopower/domain/power"
)

// AnovaEffect is one fitted univariate effect before the power transform.
// Mask is the effect's factor bitmask (bit i set when factor i participates);
// WithinMask is its within-subject part.
type AnovaEffect struct {
	Label        string
	Mask         uint
	WithinMask   uint
	NumDF        float64
	DenDF        float64
	SS           float64
	ErrorSS      float64
	MSE          float64
	F            float64
	PartialEtaSq float64
	PValue       float64
	Epsilon      float64 // sphericity epsilon applied to the dfs, 1 when none
}

// MultivariateEffect is one multivariate test extracted from the fit.
type MultivariateEffect struct {
	Label     string
	Mask      uint
	Test      string
	Statistic float64
	ApproxF   float64
	NumDF     float64
	DenDF     float64
}

// ErrorStratum is one denominator stratum of the mixed ANOVA decomposition,
// keyed by the within-factor mask it serves (0 = subjects within groups).
type ErrorStratum struct {
	WithinMask uint
	SS         float64
	DF         float64
}

// FitResult is the fitter's complete output: the univariate table, the
// multivariate table (empty without within factors), and the pieces the
// marginal-means engine reuses.
type FitResult struct {
	Effects      []AnovaEffect
	Multivariate []MultivariateEffect
	Strata       []ErrorStratum
	CellMeans    []float64
	GrandMean    float64
}

// Stratum returns the error stratum for a within mask, or nil when absent.
func (r *FitResult) Stratum(withinMask uint) *ErrorStratum {
	for i := range r.Strata {
		if r.Strata[i].WithinMask == withinMask {
			return &r.Strata[i]
		}
	}
	return nil
}

// ModelFitter fits the factorial model to a synthesized dataset. The fitting
// backend is injectable so the power engine stays independent of it.
type ModelFitter interface {
	Fit(ctx context.Context, spec *design.Spec, ds *power.Dataset, correction power.Correction) (*FitResult, error)
}
