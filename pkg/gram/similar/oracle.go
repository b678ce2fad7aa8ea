package similar

import (
	"context"

	"github.com/eqiiyao/gramclass/pkg/cache"
	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

// Oracle decides whether two entities are similar enough to merge.
// Cosine values may be memoized; the memo must be invalidated for an
// entity whenever a merge mutates its vector.
type Oracle struct {
	store store.SectionStore
	theta float64
	memo  *cache.LRUCache
}

// NewOracle returns an oracle with the given cosine threshold.
func NewOracle(s store.SectionStore, theta float64) *Oracle {
	return &Oracle{store: s, theta: theta}
}

// WithMemo attaches an LRU memo for cosine values.
func (o *Oracle) WithMemo(memo *cache.LRUCache) *Oracle {
	o.memo = memo
	return o
}

func entityKey(e model.Entity) string {
	return e.Kind.String() + ":" + e.Name
}

// Cosine computes (or recalls) the cosine similarity of two entities by
// co-iterating their sections. Either side having empty support yields 0.
func (o *Oracle) Cosine(ctx context.Context, a, b model.Entity) (float64, error) {
	key := ""
	if o.memo != nil {
		key = cache.PairKey(entityKey(a), entityKey(b))
		if val, ok := o.memo.Get(key); ok {
			if sim, ok := val.(float64); ok {
				return sim, nil
			}
		}
	}
	pairs, err := o.store.PairedRightStars(ctx, a, b)
	if err != nil {
		return 0, err
	}
	sim := model.Cosine(pairs)
	if o.memo != nil {
		o.memo.Set(key, sim)
	}
	return sim, nil
}

// ShouldMerge reports whether the cosine similarity of the two entities
// reaches the threshold, along with the value itself.
func (o *Oracle) ShouldMerge(ctx context.Context, a, b model.Entity) (bool, float64, error) {
	sim, err := o.Cosine(ctx, a, b)
	if err != nil {
		return false, 0, err
	}
	return sim >= o.theta, sim, nil
}

// Invalidate drops every memoized value involving ent. Called after a
// merge mutates the entity's vector.
func (o *Oracle) Invalidate(ent model.Entity) {
	if o.memo == nil {
		return
	}
	half := entityKey(ent)
	o.memo.DeleteIf(func(key string) bool { return cache.KeyMentions(key, half) })
}
