package app

import (
	"context"
	"math"
	"strings"

	montstats "github.com/montanaflynn/stats"

	"gopower/adapters/rng"
	"gopower/adapters/stats/pairwise"
	"gopower/adapters/stats/synth"
	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/analysis/dist"
	"gopower/ports"
)

// ExactPowerService runs the complete exact-power pipeline: synthesize an
// exact-moment dataset, fit the factorial model, and convert every test
// statistic into noncentrality-based power.
type ExactPowerService struct {
	fitter   ports.ModelFitter
	emm      ports.MarginalMeansEngine
	pairwise *pairwise.Engine
	rng      ports.RNGPort
	logger   *internal.Logger
}

// ExactPowerRequest is one analysis invocation: a built design plus the
// explicit per-call options.
type ExactPowerRequest struct {
	Design  *design.Spec
	Options power.Options
	// CellNs optionally carries per-cell sample sizes from upstream. The
	// exact path requires a single scalar n; unequal sizes are advisory-
	// warned and rejected toward the simulation-based path.
	CellNs []int
}

// NewExactPowerService wires the pipeline with its fitting and
// marginal-means backends.
func NewExactPowerService(fitter ports.ModelFitter, emm ports.MarginalMeansEngine, logger *internal.Logger) *ExactPowerService {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &ExactPowerService{
		fitter:   fitter,
		emm:      emm,
		pairwise: pairwise.NewEngine(),
		rng:      rng.NewSource(),
		logger:   logger,
	}
}

// Run executes one analysis. All validation happens before any synthesis or
// fitting; numeric boundary cases inside the power transform are results,
// not errors.
func (s *ExactPowerService) Run(ctx context.Context, req ExactPowerRequest) (*power.ResultBundle, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}
	if req.Design == nil {
		return nil, core.NewDesignError("missing design")
	}
	if err := req.Design.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCellSizes(req); err != nil {
		return nil, err
	}

	spec := req.Design
	alpha := req.Options.Alpha

	stream, err := s.rng.SeededStream(ctx, "synthesis", req.Options.Seed)
	if err != nil {
		return nil, err
	}
	ds, err := synth.New(stream).Generate(spec)
	if err != nil {
		return nil, err
	}

	fit, err := s.fitter.Fit(ctx, spec, ds, req.Options.Correction)
	if err != nil {
		return nil, err
	}

	bundle := &power.ResultBundle{
		ID:        core.AnalysisID(core.NewID()),
		Design:    spec,
		Alpha:     alpha,
		Dataset:   ds,
		CreatedAt: core.Now(),
	}

	for _, eff := range fit.Effects {
		ep := dist.PowerFromEffectSize(eff.PartialEtaSq, eff.NumDF, eff.DenDF, alpha)
		bundle.MainEffects = append(bundle.MainEffects, power.EffectResult{
			Effect:       eff.Label,
			NumDF:        eff.NumDF,
			DenDF:        eff.DenDF,
			MSE:          eff.MSE,
			F:            eff.F,
			PartialEtaSq: eff.PartialEtaSq,
			PValue:       eff.PValue,
			CohenF:       ep.CohenF,
			Lambda:       ep.Lambda,
			CriticalF:    ep.CriticalF,
			Power:        ep.Power,
		})
	}

	for _, mv := range fit.Multivariate {
		ep := dist.PowerFromEffectSize(mv.Statistic, mv.NumDF, mv.DenDF, alpha)
		bundle.Multivariate = append(bundle.Multivariate, power.MultivariateEffectResult{
			Effect:    mv.Label,
			Test:      mv.Test,
			Statistic: mv.Statistic,
			ApproxF:   mv.ApproxF,
			NumDF:     mv.NumDF,
			DenDF:     mv.DenDF,
			Lambda:    ep.Lambda,
			CriticalF: ep.CriticalF,
			Power:     ep.Power,
		})
	}

	bundle.Pairwise, err = s.pairwise.Compare(ctx, spec, ds, alpha)
	if err != nil {
		return nil, err
	}

	if req.Options.EMM {
		rows, err := s.marginalMeans(ctx, spec, ds, fit, req.Options)
		if err != nil {
			return nil, err
		}
		bundle.MarginalMeans = rows
	}

	bundle.Plot = s.meansPlot(spec, ds)
	return bundle, nil
}

func (s *ExactPowerService) checkCellSizes(req ExactPowerRequest) error {
	for _, n := range req.CellNs {
		if n != req.Design.N {
			s.logger.Warn("unequal per-cell sample sizes requested; the exact-moment path needs a scalar n, use the simulation path instead")
			return core.NewDesignError("unequal per-cell sample sizes")
		}
	}
	return nil
}

func (s *ExactPowerService) marginalMeans(ctx context.Context, spec *design.Spec, ds *power.Dataset, fit *ports.FitResult, opts power.Options) ([]power.MarginalMeansResult, error) {
	grouping := spec.GroupingFormula.Terms
	if strings.TrimSpace(opts.EMMComp) != "" {
		grouping = splitGrouping(opts.EMMComp)
	}
	contrasts, err := s.emm.Contrasts(ctx, spec, ds, fit, ports.EMMRequest{
		Model:    opts.EMMModel,
		Family:   opts.Contrast,
		Grouping: grouping,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]power.MarginalMeansResult, 0, len(contrasts))
	for _, c := range contrasts {
		// each contrast reduces to a single-df comparison: F = t^2
		f := c.TRatio * c.TRatio
		eta := 1.0
		if !math.IsInf(f, 1) {
			eta = f / (f + c.DF)
		}
		ep := dist.PowerFromEffectSize(eta, 1, c.DF, opts.Alpha)
		rows = append(rows, power.MarginalMeansResult{
			Contrast:     c.Label,
			TRatio:       c.TRatio,
			DF:           c.DF,
			PartialEtaSq: eta,
			CohenF:       ep.CohenF,
			Lambda:       ep.Lambda,
			Power:        ep.Power,
		})
	}
	return rows, nil
}

func splitGrouping(expr string) []string {
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '+' || r == '*' || r == ':' || r == ' ' || r == '~'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// meansPlot builds the descriptive plot artifact: per-cell mean, standard
// deviation, and a t-based confidence interval.
func (s *ExactPowerService) meansPlot(spec *design.Spec, ds *power.Dataset) power.MeansPlot {
	plot := power.MeansPlot{Title: "Means across cells of the design (" + spec.Code + ")"}
	n := float64(spec.N)
	tcrit := dist.TQuantile(0.975, n-1)
	for ci, cell := range spec.Cells {
		col := make([]float64, len(ds.Wide))
		for i, row := range ds.Wide {
			col[i] = row[ci]
		}
		mean, _ := montstats.Mean(col)
		sd, _ := montstats.StandardDeviationSample(col)
		half := tcrit * sd / math.Sqrt(n)
		plot.Cells = append(plot.Cells, power.CellSummary{
			Cell:    cell.ID,
			Label:   cell.Label,
			Mean:    mean,
			SD:      sd,
			CILower: mean - half,
			CIUpper: mean + half,
			N:       spec.N,
		})
	}
	return plot
}
