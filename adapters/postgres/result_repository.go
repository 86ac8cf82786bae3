package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gopower/domain/core"
	"gopower/domain/power"
	"gopower/ports"

	"github.com/jmoiron/sqlx"
)

// ResultRepositoryImpl implements ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// Save persists a completed analysis. The full bundle is stored as JSONB;
// the design code and alpha are lifted into columns for listing and search.
func (r *ResultRepositoryImpl) Save(ctx context.Context, bundle *power.ResultBundle) error {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal result bundle: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO power_analyses (
			id, design_code, alpha, bundle, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			design_code = EXCLUDED.design_code,
			alpha = EXCLUDED.alpha,
			bundle = EXCLUDED.bundle`,
		string(bundle.ID), bundle.Design.Code, bundle.Alpha, bundleJSON, bundle.CreatedAt.Time())
	return err
}

// GetByID retrieves one analysis by its ID
func (r *ResultRepositoryImpl) GetByID(ctx context.Context, id core.AnalysisID) (*power.ResultBundle, error) {
	var bundleJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT bundle FROM power_analyses WHERE id = $1`, string(id)).Scan(&bundleJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis %s: %w", id, core.ErrAnalysisNotFound)
	}
	if err != nil {
		return nil, err
	}

	var bundle power.ResultBundle
	if err := json.Unmarshal(bundleJSON, &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result bundle: %w", err)
	}
	if bundle.Design != nil {
		bundle.Design.RestoreDerived()
	}
	return &bundle, nil
}

// List returns stored analyses, newest first
func (r *ResultRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*power.ResultBundle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT bundle FROM power_analyses
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []*power.ResultBundle
	for rows.Next() {
		var bundleJSON []byte
		if err := rows.Scan(&bundleJSON); err != nil {
			return nil, err
		}
		var bundle power.ResultBundle
		if err := json.Unmarshal(bundleJSON, &bundle); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result bundle: %w", err)
		}
		if bundle.Design != nil {
			bundle.Design.RestoreDerived()
		}
		bundles = append(bundles, &bundle)
	}
	return bundles, rows.Err()
}

// Delete removes one stored analysis
func (r *ResultRepositoryImpl) Delete(ctx context.Context, id core.AnalysisID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM power_analyses WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis %s: %w", id, core.ErrAnalysisNotFound)
	}
	return nil
}
