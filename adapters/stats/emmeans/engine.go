// Package emmeans estimates marginal means over a factor grouping from a
// fitted balanced model and produces contrast families among them. The power
// pipeline only consumes the per-contrast t-ratio and residual df; anything
// else the engine reports is advisory.
package emmeans

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/ports"
)

// Engine implements ports.MarginalMeansEngine for balanced factorial fits.
type Engine struct{}

// NewEngine creates a marginal-means engine.
func NewEngine() *Engine { return &Engine{} }

var _ ports.MarginalMeansEngine = (*Engine)(nil)

// Contrasts computes the requested contrast family over the marginal means
// of the grouping factors. The univariate model takes standard errors from
// the ANOVA error stratum matching the grouping's within part; the
// multivariate model propagates the cell covariance directly.
func (e *Engine) Contrasts(ctx context.Context, spec *design.Spec, ds *power.Dataset, fit *ports.FitResult, req ports.EMMRequest) ([]ports.EMMContrast, error) {
	switch req.Model {
	case power.EMMUnivariate, power.EMMMultivariate:
	default:
		return nil, core.ErrUnknownEMMModel
	}

	grouping := req.Grouping
	if len(grouping) == 0 {
		grouping = spec.GroupingFormula.Terms
	}
	mask, err := groupingMask(spec, grouping)
	if err != nil {
		return nil, err
	}

	margins := enumerateMargins(spec, mask)
	emm := marginEstimates(spec, fit, margins)

	contrasts, err := family(req.Family, margins)
	if err != nil {
		return nil, err
	}

	cov, df, err := marginCovariance(spec, fit, margins, req.Model, mask)
	if err != nil {
		return nil, err
	}

	out := make([]ports.EMMContrast, 0, len(contrasts))
	for _, c := range contrasts {
		est := 0.0
		for i, w := range c.weights {
			est += w * emm[i]
		}
		var se2 float64
		for i, wi := range c.weights {
			for j, wj := range c.weights {
				se2 += wi * wj * cov.At(i, j)
			}
		}
		se := math.Sqrt(se2)
		t := math.Inf(1)
		if se > 0 {
			t = est / se
		} else if est == 0 {
			t = 0
		}
		out = append(out, ports.EMMContrast{
			Label:    c.label,
			Estimate: est,
			SE:       se,
			TRatio:   t,
			DF:       df,
		})
	}
	return out, nil
}

// margin is one level combination of the grouping factors.
type margin struct {
	label string
	cells []int // design cell indices averaged into this margin
}

type contrast struct {
	label   string
	weights []float64
}

func groupingMask(spec *design.Spec, names []string) (uint, error) {
	var mask uint
	for _, name := range names {
		found := false
		for fi, f := range spec.Factors {
			if f.Name == name {
				mask |= 1 << uint(fi)
				found = true
				break
			}
		}
		if !found {
			return 0, core.NewParameterError("emm_comp", fmt.Sprintf("unknown factor %q", name))
		}
	}
	if mask == 0 {
		return 0, core.NewParameterError("emm_comp", "empty grouping")
	}
	return mask, nil
}

func enumerateMargins(spec *design.Spec, mask uint) []margin {
	size := 1
	for fi, f := range spec.Factors {
		if mask&(1<<uint(fi)) != 0 {
			size *= len(f.Levels)
		}
	}
	margins := make([]margin, size)
	for ci, c := range spec.Cells {
		idx := 0
		var labels []string
		for fi, f := range spec.Factors {
			if mask&(1<<uint(fi)) != 0 {
				idx = idx*len(f.Levels) + c.LevelIdx[fi]
				labels = append(labels, f.Levels[c.LevelIdx[fi]])
			}
		}
		if margins[idx].label == "" {
			margins[idx].label = strings.Join(labels, "_")
		}
		margins[idx].cells = append(margins[idx].cells, ci)
	}
	return margins
}

func marginEstimates(spec *design.Spec, fit *ports.FitResult, margins []margin) []float64 {
	est := make([]float64, len(margins))
	for i, m := range margins {
		for _, ci := range m.cells {
			est[i] += fit.CellMeans[ci]
		}
		est[i] /= float64(len(m.cells))
	}
	return est
}

// marginCovariance builds the covariance of the margin estimates. The
// multivariate model averages the cell covariance Sigma/n; the univariate
// model uses the error stratum for the grouping's within part, under which
// margin estimates are exchangeable with variance MSE per observation.
func marginCovariance(spec *design.Spec, fit *ports.FitResult, margins []margin, model power.EMMModel, mask uint) (*mat.SymDense, float64, error) {
	msize := len(margins)
	cov := mat.NewSymDense(msize, nil)
	n := float64(spec.N)

	if model == power.EMMMultivariate {
		for i := 0; i < msize; i++ {
			for j := i; j < msize; j++ {
				acc := 0.0
				for _, ci := range margins[i].cells {
					for _, cj := range margins[j].cells {
						acc += spec.Sigma.At(ci, cj)
					}
				}
				acc /= n * float64(len(margins[i].cells)) * float64(len(margins[j].cells))
				cov.SetSym(i, j, acc)
			}
		}
		df := float64(spec.SubjectCount() - spec.BetweenGroupCount())
		return cov, df, nil
	}

	var withinMask uint
	for fi, f := range spec.Factors {
		if f.Within {
			withinMask |= 1 << uint(fi)
		}
	}
	stratum := fit.Stratum(mask & withinMask)
	if stratum == nil || stratum.DF <= 0 {
		return nil, 0, fmt.Errorf("%w: no error stratum for grouping", core.ErrInsufficientData)
	}
	mse := stratum.SS / stratum.DF
	obsPerMargin := n * float64(len(margins[0].cells))
	for i := 0; i < msize; i++ {
		cov.SetSym(i, i, mse/obsPerMargin)
	}
	return cov, stratum.DF, nil
}

func family(f power.ContrastType, margins []margin) ([]contrast, error) {
	m := len(margins)
	switch f {
	case power.ContrastPairwise:
		return pairwiseFamily(margins, false), nil
	case power.ContrastRevPairwise:
		return pairwiseFamily(margins, true), nil
	case power.ContrastConsec:
		out := make([]contrast, 0, m-1)
		for i := 1; i < m; i++ {
			w := make([]float64, m)
			w[i], w[i-1] = 1, -1
			out = append(out, contrast{
				label:   margins[i].label + " - " + margins[i-1].label,
				weights: w,
			})
		}
		return out, nil
	case power.ContrastPoly:
		return polyFamily(m), nil
	case power.ContrastEff:
		out := make([]contrast, 0, m)
		for i := 0; i < m; i++ {
			w := make([]float64, m)
			for j := range w {
				w[j] = -1 / float64(m)
			}
			w[i] += 1
			out = append(out, contrast{label: margins[i].label + " effect", weights: w})
		}
		return out, nil
	default:
		// tukey, dunnett and anything else multiplicity-adjusted has no
		// exact-power analogue here
		return nil, core.NewContrastError(string(f))
	}
}

func pairwiseFamily(margins []margin, reverse bool) []contrast {
	m := len(margins)
	out := make([]contrast, 0, m*(m-1)/2)
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			w := make([]float64, m)
			a, b := i, j
			if reverse {
				a, b = j, i
			}
			w[a], w[b] = 1, -1
			out = append(out, contrast{
				label:   margins[a].label + " - " + margins[b].label,
				weights: w,
			})
		}
	}
	return out
}

// polyFamily builds orthonormal polynomial contrasts over m equally spaced
// levels by Gram-Schmidt on the power basis.
func polyFamily(m int) []contrast {
	names := []string{"linear", "quadratic", "cubic"}
	basis := make([][]float64, 0, m-1)
	prev := [][]float64{constantVector(m)}
	out := make([]contrast, 0, m-1)
	for deg := 1; deg < m; deg++ {
		v := make([]float64, m)
		for i := range v {
			v[i] = math.Pow(float64(i+1), float64(deg))
		}
		for _, p := range prev {
			proj := dot(v, p)
			for i := range v {
				v[i] -= proj * p[i]
			}
		}
		norm := math.Sqrt(dot(v, v))
		for i := range v {
			v[i] /= norm
		}
		prev = append(prev, v)
		basis = append(basis, v)

		name := fmt.Sprintf("degree%d", deg)
		if deg <= len(names) {
			name = names[deg-1]
		}
		out = append(out, contrast{label: name, weights: basis[deg-1]})
	}
	return out
}

func constantVector(m int) []float64 {
	v := make([]float64, m)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(m))
	}
	return v
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
