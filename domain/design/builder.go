package design

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gopower/domain/core"
)

// Params collects the inputs the upstream design descriptor supplies.
// SD may hold a single value (expanded to every cell) or one value per cell.
type Params struct {
	Code        string
	FactorNames []string
	N           int
	Mu          []float64
	SD          []float64
	R           float64
}

// New builds a Spec from a design code such as "2b*2w" (level count followed
// by a between/within tag, factors joined with '*'). Cells are enumerated
// with the last factor varying fastest, and that order is the canonical one
// every result table aligns to.
func New(p Params) (*Spec, error) {
	factors, err := parseCode(p.Code, p.FactorNames)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		Code:    p.Code,
		Factors: factors,
		N:       p.N,
		Mu:      append([]float64(nil), p.Mu...),
		R:       p.R,
	}
	for _, f := range factors {
		if f.Within {
			spec.HasWithin = true
		}
	}

	spec.Cells = enumerateCells(factors)
	k := len(spec.Cells)

	switch len(p.SD) {
	case 1:
		spec.SD = make([]float64, k)
		for i := range spec.SD {
			spec.SD[i] = p.SD[0]
		}
	case k:
		spec.SD = append([]float64(nil), p.SD...)
	default:
		return nil, fmt.Errorf("%w: sd must be scalar or one per cell, got %d values for %d cells",
			core.ErrCellCountMismatch, len(p.SD), k)
	}

	spec.Sigma = buildSigma(spec)
	spec.FullFormula = fullFormula(factors)
	spec.GroupingFormula = Formula{Response: "", Terms: spec.FactorNames()}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// RestoreDerived recomputes the covariance matrix after the spec is decoded
// from storage. Sigma is derived state and never serialized.
func (s *Spec) RestoreDerived() {
	s.Sigma = buildSigma(s)
}

func parseCode(code string, names []string) ([]Factor, error) {
	if strings.TrimSpace(code) == "" {
		return nil, core.NewDesignError("empty design code")
	}
	parts := strings.Split(code, "*")
	factors := make([]Factor, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return nil, core.NewDesignError(fmt.Sprintf("malformed design code element %q", part))
		}
		tag := part[len(part)-1]
		if tag != 'b' && tag != 'w' {
			return nil, core.NewDesignError(fmt.Sprintf("design code element %q must end in 'b' or 'w'", part))
		}
		levels, err := strconv.Atoi(part[:len(part)-1])
		if err != nil || levels < 2 {
			return nil, core.NewDesignError(fmt.Sprintf("design code element %q needs >=2 levels", part))
		}
		name := defaultFactorName(i)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = names[i]
		}
		f := Factor{Name: name, Within: tag == 'w'}
		for l := 1; l <= levels; l++ {
			f.Levels = append(f.Levels, fmt.Sprintf("%s%d", name, l))
		}
		factors = append(factors, f)
	}
	return factors, nil
}

func defaultFactorName(i int) string {
	// a, b, c, ... matches the conventional naming for unnamed factors
	return string(rune('a' + i))
}

func enumerateCells(factors []Factor) []Cell {
	k := 1
	for _, f := range factors {
		k *= len(f.Levels)
	}
	cells := make([]Cell, 0, k)
	idx := make([]int, len(factors))
	for id := 0; id < k; id++ {
		labels := make([]string, len(factors))
		for fi, f := range factors {
			labels[fi] = f.Levels[idx[fi]]
		}
		cells = append(cells, Cell{
			ID:       CellID(id),
			Label:    strings.Join(labels, "_"),
			LevelIdx: append([]int(nil), idx...),
		})
		// advance mixed-radix counter, last factor fastest
		for fi := len(factors) - 1; fi >= 0; fi-- {
			idx[fi]++
			if idx[fi] < len(factors[fi].Levels) {
				break
			}
			idx[fi] = 0
		}
	}
	return cells
}

// buildSigma derives the cell covariance matrix from the per-cell standard
// deviations and the within-subject correlation. Cells in different
// between-subject groups are uncorrelated.
func buildSigma(s *Spec) *mat.SymDense {
	k := len(s.Cells)
	sigma := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		sigma.SetSym(i, i, s.SD[i]*s.SD[i])
		for j := i + 1; j < k; j++ {
			if s.GroupOf(s.Cells[i]) == s.GroupOf(s.Cells[j]) {
				sigma.SetSym(i, j, s.R*s.SD[i]*s.SD[j])
			}
		}
	}
	return sigma
}

func fullFormula(factors []Factor) Formula {
	f := Formula{Response: "y"}
	var within []string
	for _, fac := range factors {
		f.Terms = append(f.Terms, fac.Name)
		if fac.Within {
			within = append(within, fac.Name)
		}
	}
	if len(within) > 0 {
		f.Error = fmt.Sprintf("subject/(%s)", strings.Join(within, "*"))
	}
	return f
}
