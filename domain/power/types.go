package power

import (
	"gopower/domain/core"
	"gopower/domain/design"
)

// Correction selects the sphericity correction applied to within-subject
// degrees of freedom.
type Correction string

const (
	CorrectionNone Correction = "none"
	CorrectionGG   Correction = "gg" // Greenhouse-Geisser
	CorrectionHF   Correction = "hf" // Huynh-Feldt
)

// EMMModel selects how the marginal-means engine derives standard errors.
type EMMModel string

const (
	EMMUnivariate   EMMModel = "univariate"
	EMMMultivariate EMMModel = "multivariate"
)

// ContrastType names a marginal-means contrast family.
type ContrastType string

const (
	ContrastPairwise    ContrastType = "pairwise"
	ContrastRevPairwise ContrastType = "revpairwise"
	ContrastConsec      ContrastType = "consec"
	ContrastPoly        ContrastType = "poly"
	ContrastEff         ContrastType = "eff"
)

// supportedContrasts is the exact-power whitelist. Multiplicity-adjusted
// families (tukey, dunnett) are rejected: the exact-power path reports each
// contrast without adjustment.
var supportedContrasts = map[ContrastType]bool{
	ContrastPairwise:    true,
	ContrastRevPairwise: true,
	ContrastConsec:      true,
	ContrastPoly:        true,
	ContrastEff:         true,
}

// Options is the explicit per-call configuration. There are no process-wide
// defaults; callers start from DefaultOptions and override.
type Options struct {
	Alpha      float64      `json:"alpha"`
	Correction Correction   `json:"correction"`
	EMM        bool         `json:"emm"`
	EMMModel   EMMModel     `json:"emm_model,omitempty"`
	Contrast   ContrastType `json:"contrast_type,omitempty"`
	EMMComp    string       `json:"emm_comp,omitempty"` // grouping factors, '+'-separated; empty means all
	Seed       int64        `json:"seed"`
}

// DefaultOptions returns the conventional alpha 0.05, no correction, no
// marginal-means pass.
func DefaultOptions() Options {
	return Options{Alpha: 0.05, Correction: CorrectionNone, Seed: 1}
}

// Validate rejects invalid option combinations before any computation.
func (o Options) Validate() error {
	if o.Alpha <= 0 || o.Alpha >= 1 {
		return core.ErrAlphaOutOfRange
	}
	switch o.Correction {
	case CorrectionNone, CorrectionGG, CorrectionHF:
	default:
		return core.ErrUnknownCorrection
	}
	if o.EMM {
		switch o.EMMModel {
		case EMMUnivariate, EMMMultivariate:
		default:
			return core.ErrUnknownEMMModel
		}
		if !supportedContrasts[o.Contrast] {
			return core.NewContrastError(string(o.Contrast))
		}
	}
	return nil
}

// EffectResult is one row of the univariate ANOVA power table.
type EffectResult struct {
	Effect       string  `json:"effect"`
	NumDF        float64 `json:"num_df"`
	DenDF        float64 `json:"den_df"`
	MSE          float64 `json:"mse"`
	F            float64 `json:"f"`
	PartialEtaSq float64 `json:"partial_eta_squared"`
	PValue       float64 `json:"p_value"`
	CohenF       float64 `json:"cohen_f"`
	Lambda       float64 `json:"noncentrality"`
	CriticalF    float64 `json:"critical_f"`
	Power        float64 `json:"power"` // percent
}

// MultivariateEffectResult is one row of the MANOVA power table.
type MultivariateEffectResult struct {
	Effect    string  `json:"effect"`
	Test      string  `json:"test"` // e.g. "Pillai"
	Statistic float64 `json:"test_statistic"`
	ApproxF   float64 `json:"approx_f"`
	NumDF     float64 `json:"num_df"`
	DenDF     float64 `json:"den_df"`
	Lambda    float64 `json:"noncentrality"`
	CriticalF float64 `json:"critical_f"`
	Power     float64 `json:"power"`
}

// PairwiseResult is one row of the cell-pair comparison table.
type PairwiseResult struct {
	Label      string        `json:"comparison"`
	CellA      design.CellID `json:"cell_a"`
	CellB      design.CellID `json:"cell_b"`
	Paired     bool          `json:"paired"`
	EffectSize float64       `json:"effect_size"` // Cohen's d, or d_z when paired
	Power      float64       `json:"power"`
}

// MarginalMeansResult is one row of the estimated-marginal-means contrast
// power table.
type MarginalMeansResult struct {
	Contrast     string  `json:"contrast"`
	TRatio       float64 `json:"t_ratio"`
	DF           float64 `json:"df"`
	PartialEtaSq float64 `json:"partial_eta_squared"`
	CohenF       float64 `json:"cohen_f"`
	Lambda       float64 `json:"noncentrality"`
	Power        float64 `json:"power"`
}
