package rank

import (
	"context"
	"sort"
	"sync"

	"github.com/eqiiyao/gramclass/pkg/concurrent"
	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

// Index caches per-entity observation totals read from the store's
// wildcards. Cached totals are not rewritten when merges move mass;
// callers that need a fresh value use Refresh.
type Index struct {
	store  store.SectionStore
	mu     sync.RWMutex
	totals map[model.Entity]float64
}

func NewIndex(s store.SectionStore) *Index {
	return &Index{store: s, totals: make(map[model.Entity]float64)}
}

// Prefetch materializes wildcards for every candidate so ranking reads
// from memory. Fetches run in parallel; each is read-only on the store.
func (ix *Index) Prefetch(ctx context.Context, ents []model.Entity, maxConcurrency int) error {
	missing := make([]model.Entity, 0, len(ents))
	ix.mu.RLock()
	for _, ent := range ents {
		if _, ok := ix.totals[ent]; !ok {
			missing = append(missing, ent)
		}
	}
	ix.mu.RUnlock()
	return concurrent.ParallelForEach(ctx, missing, func(ent model.Entity) error {
		_, err := ix.Refresh(ctx, ent)
		return err
	}, maxConcurrency)
}

// ObservationTotal returns the cached total count over all sections of
// ent, fetching it on first use.
func (ix *Index) ObservationTotal(ctx context.Context, ent model.Entity) (float64, error) {
	ix.mu.RLock()
	total, ok := ix.totals[ent]
	ix.mu.RUnlock()
	if ok {
		return total, nil
	}
	return ix.Refresh(ctx, ent)
}

// Refresh re-reads the wildcard for ent and replaces the cached total.
func (ix *Index) Refresh(ctx context.Context, ent model.Entity) (float64, error) {
	wc, err := ix.store.RightWildcard(ctx, ent)
	if err != nil {
		return 0, err
	}
	ix.mu.Lock()
	ix.totals[ent] = wc.Total
	ix.mu.Unlock()
	return wc.Total, nil
}

// TrimAndRank drops entities whose cached total is below minObs and sorts
// the rest descending by total. The sort is stable, so equal totals keep
// their input order; unchanged input ranks the same way every time.
func (ix *Index) TrimAndRank(ctx context.Context, list []model.Entity, minObs float64) ([]model.Entity, error) {
	type ranked struct {
		ent   model.Entity
		total float64
	}
	kept := make([]ranked, 0, len(list))
	for _, ent := range list {
		total, err := ix.ObservationTotal(ctx, ent)
		if err != nil {
			return nil, err
		}
		if total < minObs {
			continue
		}
		kept = append(kept, ranked{ent: ent, total: total})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].total > kept[j].total })
	out := make([]model.Entity, len(kept))
	for i, r := range kept {
		out[i] = r.ent
	}
	return out, nil
}
