package design

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gopower/domain/core"
)

// Factor is one experimental factor in a factorial design.
type Factor struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
	Within bool     `json:"within"`
}

// CellID indexes a design cell in the canonical enumeration order.
// All result tables are aligned positionally through CellID, never by
// parsing condition labels.
type CellID int

// Cell is one combination of factor levels.
type Cell struct {
	ID       CellID `json:"id"`
	Label    string `json:"label"`     // joined level labels, e.g. "a1_b2"
	LevelIdx []int  `json:"level_idx"` // per-factor level index
}

// Formula is an opaque model-formula descriptor consumed by the fitter and
// the marginal-means engine. Terms on the right-hand side are factor names.
type Formula struct {
	Response string   `json:"response"`
	Terms    []string `json:"terms"`
	Error    string   `json:"error,omitempty"` // subject error stratum, empty for pure between designs
}

func (f Formula) String() string {
	rhs := strings.Join(f.Terms, "*")
	if f.Error != "" {
		return fmt.Sprintf("%s ~ %s + Error(%s)", f.Response, rhs, f.Error)
	}
	return fmt.Sprintf("%s ~ %s", f.Response, rhs)
}

// Spec is the complete design descriptor: factor structure, population
// moments, and the derived cell list and covariance matrix. Built once and
// treated as immutable by every downstream component.
type Spec struct {
	Code      string        `json:"code"`
	Factors   []Factor      `json:"factors"`
	N         int           `json:"n"`  // per-cell sample size, scalar only
	Mu        []float64     `json:"mu"` // one population mean per cell
	SD        []float64     `json:"sd"` // one population standard deviation per cell
	R         float64       `json:"r"`  // correlation between within-subject cells
	Sigma     *mat.SymDense `json:"-"`
	Cells     []Cell        `json:"cells"`
	HasWithin bool          `json:"has_within"`

	FullFormula     Formula `json:"full_formula"`
	GroupingFormula Formula `json:"grouping_formula"`
}

// CellCount returns the number of design cells.
func (s *Spec) CellCount() int { return len(s.Cells) }

// FactorNames returns the ordered factor names.
func (s *Spec) FactorNames() []string {
	names := make([]string, len(s.Factors))
	for i, f := range s.Factors {
		names[i] = f.Name
	}
	return names
}

// BetweenGroupCount returns the number of between-subject level combinations.
func (s *Spec) BetweenGroupCount() int {
	g := 1
	for _, f := range s.Factors {
		if !f.Within {
			g *= len(f.Levels)
		}
	}
	return g
}

// WithinCellCount returns the number of within-subject level combinations.
func (s *Spec) WithinCellCount() int {
	w := 1
	for _, f := range s.Factors {
		if f.Within {
			w *= len(f.Levels)
		}
	}
	return w
}

// GroupOf returns the between-group index of a cell (0 when the design has
// no between factors).
func (s *Spec) GroupOf(c Cell) int {
	g := 0
	for fi, f := range s.Factors {
		if !f.Within {
			g = g*len(f.Levels) + c.LevelIdx[fi]
		}
	}
	return g
}

// WithinOf returns the within-combination index of a cell (0 when the design
// has no within factors).
func (s *Spec) WithinOf(c Cell) int {
	w := 0
	for fi, f := range s.Factors {
		if f.Within {
			w = w*len(f.Levels) + c.LevelIdx[fi]
		}
	}
	return w
}

// SubjectCount returns the total number of synthetic subjects: N per
// between-group, one subject row per within combination.
func (s *Spec) SubjectCount() int {
	return s.N * s.BetweenGroupCount()
}

// CellAt returns the cell at a between-group/within-combination pair.
func (s *Spec) CellAt(group, within int) Cell {
	for _, c := range s.Cells {
		if s.GroupOf(c) == group && s.WithinOf(c) == within {
			return c
		}
	}
	return Cell{ID: -1}
}

// Validate checks the invariants the exact-moment pipeline depends on.
// Violations are rejected before any synthesis or fitting occurs.
func (s *Spec) Validate() error {
	if len(s.Factors) == 0 {
		return core.NewDesignError("design has no factors")
	}
	k := s.CellCount()
	if k == 0 {
		return core.NewDesignError("design has no cells")
	}
	if len(s.Mu) != k {
		return fmt.Errorf("%w: %d means for %d cells", core.ErrCellCountMismatch, len(s.Mu), k)
	}
	if len(s.SD) != k {
		return fmt.Errorf("%w: %d standard deviations for %d cells", core.ErrCellCountMismatch, len(s.SD), k)
	}
	for i, sd := range s.SD {
		if sd <= 0 {
			return core.NewDesignError(fmt.Sprintf("standard deviation for cell %d must be positive", i))
		}
	}
	if s.R <= -1 || s.R >= 1 {
		return core.NewDesignError("correlation must be inside (-1, 1)")
	}
	// The exact-moment synthesizer needs at least as many observations per
	// group as free moment constraints.
	if s.N < k {
		return fmt.Errorf("%w: n=%d, cells=%d", core.ErrSampleTooSmall, s.N, k)
	}
	if s.Sigma == nil || s.Sigma.SymmetricDim() != k {
		return fmt.Errorf("%w: sigma dimension", core.ErrCellCountMismatch)
	}
	return nil
}
