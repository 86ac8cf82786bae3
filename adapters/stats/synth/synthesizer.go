// Package synth implements the exact-moment data synthesizer: given a design
// with population means mu and covariance Sigma, it produces a sample whose
// realized column means and covariance equal mu and Sigma to floating-point
// precision, not merely in expectation.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"gopower/domain/core"
	"gopower/domain/design"
	"gopower/domain/power"
)

// psdTol is the relative eigenvalue tolerance below which Sigma is treated
// as indefinite rather than merely rank-deficient.
const psdTol = 1e-10

// Synthesizer draws exact-moment datasets. The seeded base draw only decides
// which member of the exact-moment family is returned; the moments themselves
// are deterministic.
type Synthesizer struct {
	rng *rand.Rand
}

// New creates a synthesizer over a seeded source.
func New(rng *rand.Rand) *Synthesizer {
	return &Synthesizer{rng: rng}
}

// Generate builds the wide n-by-k exact-moment matrix and its long reshape.
// The construction follows the classical empirical-transform recipe: draw a
// normal base matrix, center it, rotate it onto its right singular vectors so
// the columns are exactly orthogonal, scale each column to unit sample
// variance, then color with an eigen factor of Sigma and shift by mu.
func (s *Synthesizer) Generate(spec *design.Spec) (*power.Dataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	n, k := spec.N, spec.CellCount()

	var eig mat.EigenSym
	if !eig.Factorize(spec.Sigma, true) {
		return nil, fmt.Errorf("%w: eigendecomposition failed", core.ErrSigmaNotPSD)
	}
	vals := eig.Values(nil)
	maxEig := 0.0
	for _, v := range vals {
		if v > maxEig {
			maxEig = v
		}
	}
	for _, v := range vals {
		if v < -psdTol*maxEig {
			return nil, fmt.Errorf("%w: eigenvalue %g", core.ErrSigmaNotPSD, v)
		}
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// factor F with F*F' = Sigma
	factor := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			ev := vals[j]
			if ev < 0 {
				ev = 0
			}
			factor.Set(i, j, vecs.At(i, j)*math.Sqrt(ev))
		}
	}

	base := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			base.Set(i, j, s.rng.NormFloat64())
		}
	}
	centerColumns(base)

	var svd mat.SVD
	if !svd.Factorize(base, mat.SVDThin) {
		return nil, fmt.Errorf("%w: base draw decomposition failed", core.ErrInsufficientData)
	}
	var right mat.Dense
	svd.VTo(&right)
	var rot mat.Dense
	rot.Mul(base, &right)

	if err := scaleColumnsToUnitVariance(&rot); err != nil {
		return nil, err
	}

	// Y = rot * F' + mu: realized covariance is F*I*F' = Sigma exactly.
	var y mat.Dense
	y.Mul(&rot, factor.T())
	wide := make([][]float64, n)
	for i := 0; i < n; i++ {
		wide[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			wide[i][j] = y.At(i, j) + spec.Mu[j]
		}
	}

	return &power.Dataset{Wide: wide, Long: reshapeLong(spec, wide)}, nil
}

func centerColumns(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
		}
		mean := sum / float64(r)
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)-mean)
		}
	}
}

func scaleColumnsToUnitVariance(m *mat.Dense) error {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		ss := 0.0
		for i := 0; i < r; i++ {
			v := m.At(i, j)
			ss += v * v
		}
		sd := math.Sqrt(ss / float64(r-1))
		if sd < 1e-300 {
			// happens when n equals the cell count: the centered base has
			// rank n-1 and cannot carry k exact second moments
			return fmt.Errorf("%w: need more observations than cells for exact moments", core.ErrInsufficientData)
		}
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)/sd)
		}
	}
	return nil
}

// reshapeLong expands the wide matrix into long-format observations. Each
// between-group gets its own block of subjects, and a subject's rows cover
// every within-subject cell so the synthesized correlation attaches to one
// synthetic subject.
func reshapeLong(spec *design.Spec, wide [][]float64) []power.Observation {
	groups := spec.BetweenGroupCount()
	withins := spec.WithinCellCount()
	long := make([]power.Observation, 0, spec.N*groups*withins)
	for g := 0; g < groups; g++ {
		for s := 0; s < spec.N; s++ {
			subject := g*spec.N + s + 1
			for w := 0; w < withins; w++ {
				cell := spec.CellAt(g, w)
				long = append(long, power.Observation{
					Subject: subject,
					Cell:    cell.ID,
					Cond:    cell.Label,
					Y:       wide[s][cell.ID],
				})
			}
		}
	}
	return long
}
