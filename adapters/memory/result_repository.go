// Package memory provides in-process adapters used in tests and in
// configurations without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gopower/domain/core"
	"gopower/domain/power"
	"gopower/ports"
)

// ResultRepository stores analysis bundles in memory.
type ResultRepository struct {
	mu      sync.RWMutex
	bundles map[core.AnalysisID]*power.ResultBundle
}

// NewResultRepository creates an empty in-memory result repository
func NewResultRepository() *ResultRepository {
	return &ResultRepository{bundles: make(map[core.AnalysisID]*power.ResultBundle)}
}

var _ ports.ResultRepository = (*ResultRepository)(nil)

func (r *ResultRepository) Save(_ context.Context, bundle *power.ResultBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[bundle.ID] = bundle
	return nil
}

func (r *ResultRepository) GetByID(_ context.Context, id core.AnalysisID) (*power.ResultBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bundle, ok := r.bundles[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, core.ErrAnalysisNotFound)
	}
	return bundle, nil
}

func (r *ResultRepository) List(_ context.Context, limit, offset int) ([]*power.ResultBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*power.ResultBundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Time().After(all[j].CreatedAt.Time())
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *ResultRepository) Delete(_ context.Context, id core.AnalysisID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bundles[id]; !ok {
		return fmt.Errorf("analysis %s: %w", id, core.ErrAnalysisNotFound)
	}
	delete(r.bundles, id)
	return nil
}
