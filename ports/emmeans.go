package ports

import (
	"context"

	"gopower/domain/design"
	"gopower/domain/power"
)

// EMMContrast is one estimated-marginal-means contrast as reported by the
// engine: a t-ratio and the residual degrees of freedom it was tested on.
type EMMContrast struct {
	Label    string
	Estimate float64
	SE       float64
	TRatio   float64
	DF       float64
}

// EMMRequest describes one marginal-means pass.
type EMMRequest struct {
	Model    power.EMMModel
	Family   power.ContrastType
	Grouping []string // factor names; defaults to the grouping formula terms
}

// MarginalMeansEngine estimates marginal means over a factor grouping and
// returns the requested contrast family. Treated as a black box by the power
// pipeline: only the t-ratio and df flow onward.
type MarginalMeansEngine interface {
	Contrasts(ctx context.Context, spec *design.Spec, ds *power.Dataset, fit *FitResult, req EMMRequest) ([]EMMContrast, error)
}
