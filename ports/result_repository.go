package ports

import (
	"context"

	"gopower/domain/core"
	"gopower/domain/power"
)

// ResultRepository persists completed analyses.
type ResultRepository interface {
	Save(ctx context.Context, bundle *power.ResultBundle) error
	GetByID(ctx context.Context, id core.AnalysisID) (*power.ResultBundle, error)
	List(ctx context.Context, limit, offset int) ([]*power.ResultBundle, error)
	Delete(ctx context.Context, id core.AnalysisID) error
}
