package power

import (
	"gopower/domain/core"
	"gopower/domain/design"
)

// Observation is one long-format row of the synthesized dataset.
type Observation struct {
	Subject int           `json:"subject"`
	Cell    design.CellID `json:"cell"`
	Cond    string        `json:"cond"`
	Y       float64       `json:"y"`
}

// Dataset is the exact-moment synthesized dataset in both layouts: Wide holds
// one column per cell (subject rows aligned within a between-group), Long
// holds the observation rows the fitter consumes. Built once per analysis and
// never mutated afterwards.
type Dataset struct {
	Wide [][]float64   `json:"-"`
	Long []Observation `json:"long"`
}

// CellSummary is one point of the descriptive means plot.
type CellSummary struct {
	Cell    design.CellID `json:"cell"`
	Label   string        `json:"label"`
	Mean    float64       `json:"mean"`
	SD      float64       `json:"sd"`
	CILower float64       `json:"ci_lower"`
	CIUpper float64       `json:"ci_upper"`
	N       int           `json:"n"`
}

// MeansPlot is the plot artifact: the per-cell descriptive summaries a
// renderer needs, not a rendered image.
type MeansPlot struct {
	Title string        `json:"title"`
	Cells []CellSummary `json:"cells"`
}

// ResultBundle aggregates every table produced by one exact-power analysis.
// Immutable once returned.
type ResultBundle struct {
	ID            core.AnalysisID            `json:"id"`
	Design        *design.Spec               `json:"design"`
	Alpha         float64                    `json:"alpha"`
	Dataset       *Dataset                   `json:"dataset"`
	MainEffects   []EffectResult             `json:"main_effects"`
	Multivariate  []MultivariateEffectResult `json:"multivariate,omitempty"`
	Pairwise      []PairwiseResult           `json:"pairwise"`
	MarginalMeans []MarginalMeansResult      `json:"marginal_means,omitempty"`
	Plot          MeansPlot                  `json:"plot"`
	CreatedAt     core.Timestamp             `json:"created_at"`
}
