package engine

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/eqiiyao/gramclass/pkg/cache"
	"github.com/eqiiyao/gramclass/pkg/concurrent"
	"github.com/eqiiyao/gramclass/pkg/gram/merge"
	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/rank"
	"github.com/eqiiyao/gramclass/pkg/gram/similar"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

// Engine drives ranking, assignment and merging over a section store.
// The loop is serial: one merge at a time, each atomic with respect to
// the store. Only similarity comparisons and the wildcard prefetch before
// ranking fan out to workers.
type Engine struct {
	store   store.SectionStore
	index   *rank.Index
	oracle  *similar.Oracle
	opts    Options
	metrics *Metrics
	logger  *log.Logger
	clock   func() time.Time
}

// New constructs a clustering engine on top of a SectionStore
// implementation.
func New(s store.SectionStore, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:   s,
		index:   rank.NewIndex(s),
		oracle:  similar.NewOracle(s, opts.CosineThreshold),
		opts:    opts,
		metrics: &Metrics{},
		logger:  log.New(os.Stderr, "gram-engine: ", log.LstdFlags),
		clock:   opts.Clock,
	}
}

// WithLogger overrides the default logger.
func (e *Engine) WithLogger(logger *log.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithMemo attaches a similarity memo to the oracle. The engine
// invalidates affected entries after every merge.
func (e *Engine) WithMemo(memo *cache.LRUCache) *Engine {
	e.oracle.WithMemo(memo)
	return e
}

// Index exposes the support index, mostly so callers can Refresh totals.
func (e *Engine) Index() *rank.Index { return e.index }

// MetricsSnapshot returns a copy of the runtime counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// compare runs one similarity comparison and emits the per-comparison
// observability line.
func (e *Engine) compare(ctx context.Context, a, b model.Entity) (bool, error) {
	start := e.clock()
	ok, sim, err := e.oracle.ShouldMerge(ctx, a, b)
	if err != nil {
		return false, err
	}
	e.metrics.IncComparisons()
	e.logf("cosine=%.4f %s %q -- %s %q (%.3f secs)",
		sim, a.Kind, a.Name, b.Kind, b.Name, e.clock().Sub(start).Seconds())
	return ok, nil
}

// mergeInto performs one orthogonal merge and keeps metrics and the
// similarity memo in step with the mutated vectors.
func (e *Engine) mergeInto(ctx context.Context, wa, wb model.Entity) (merge.Result, error) {
	res, err := merge.Ortho(ctx, e.store, wa, wb, e.opts.MergeFraction)
	if err != nil {
		return res, err
	}
	if res.Merged {
		e.metrics.IncMerges()
		if res.Created {
			e.metrics.IncClassesCreated()
		}
		e.metrics.IncClamped(res.Clamped)
		e.oracle.Invalidate(wa)
		e.oracle.Invalidate(wb)
		e.oracle.Invalidate(res.Class)
	}
	return res, nil
}

// AssignWordToClass merges word into the first class it is similar to
// and returns that class; the word comes back unchanged when no class
// matches. Comparisons run in parallel — each is read-only — but the
// verdicts are gathered and scanned in input order, so the selected
// class is deterministic.
func (e *Engine) AssignWordToClass(ctx context.Context, word model.Entity, classes []model.Entity) (model.Entity, error) {
	if len(classes) == 0 {
		return word, nil
	}
	verdicts, err := concurrent.ParallelMap(ctx, classes, func(c model.Entity) (bool, error) {
		return e.compare(ctx, c, word)
	}, e.opts.Workers)
	if err != nil {
		return word, err
	}
	for i, ok := range verdicts {
		if !ok {
			continue
		}
		res, err := e.mergeInto(ctx, classes[i], word)
		if err != nil {
			return word, err
		}
		return res.Class, nil
	}
	return word, nil
}

// AssignExpandClass greedily merges every similar candidate into ent,
// maximally enlarging the class in one pass. The returned entity is a
// class when at least one merge happened, otherwise ent itself.
func (e *Engine) AssignExpandClass(ctx context.Context, ent model.Entity, candidates []model.Entity) (model.Entity, error) {
	cur := ent
	for _, cand := range candidates {
		if cand == cur {
			continue
		}
		ok, err := e.compare(ctx, cur, cand)
		if err != nil {
			return cur, err
		}
		if !ok {
			continue
		}
		res, err := e.mergeInto(ctx, cur, cand)
		if err != nil {
			return cur, err
		}
		if res.Merged {
			cur = res.Class
		}
	}
	return cur, nil
}

// blockAssign places every word of the block: first into an existing
// class, else by growing a new class over the rest of the block. New
// classes are appended so older classes stay preferred.
func (e *Engine) blockAssign(ctx context.Context, block, classes []model.Entity) ([]model.Entity, error) {
	for i, w := range block {
		placed, err := e.AssignWordToClass(ctx, w, classes)
		if err != nil {
			return classes, err
		}
		if placed != w {
			continue
		}
		got, err := e.AssignExpandClass(ctx, w, block[i+1:])
		if err != nil {
			return classes, err
		}
		if got.IsClass() {
			classes = append(classes, got)
		}
	}
	return classes, nil
}

// assignToClasses is the provisional-singleton path: words that match no
// true class wait in a pool, and the first mutually similar pair of
// singletons founds a new class.
func (e *Engine) assignToClasses(ctx context.Context, block, classes, singles []model.Entity) ([]model.Entity, []model.Entity, error) {
	for _, w := range block {
		placed, err := e.AssignWordToClass(ctx, w, classes)
		if err != nil {
			return classes, singles, err
		}
		if placed != w {
			continue
		}
		matched := false
		for si, sgl := range singles {
			ok, err := e.compare(ctx, sgl, w)
			if err != nil {
				return classes, singles, err
			}
			if !ok {
				continue
			}
			res, err := e.mergeInto(ctx, sgl, w)
			if err != nil {
				return classes, singles, err
			}
			if res.Merged {
				classes = append(classes, res.Class)
				singles = append(singles[:si], singles[si+1:]...)
				matched = true
			}
			break
		}
		if !matched {
			singles = append(singles, w)
		}
	}
	return classes, singles, nil
}

// Cluster runs the full-corpus loop: rank by observation total, skip the
// frontier already exhausted by a previous run, then sweep geometrically
// growing blocks. It returns the true classes (two or more members): the
// ones already persisted, in the store's listing order, followed by the
// new ones in creation order.
func (e *Engine) Cluster(ctx context.Context) ([]model.Entity, error) {
	words, err := e.store.Words(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.index.Prefetch(ctx, words, e.opts.Workers); err != nil {
		return nil, err
	}
	ranked, err := e.index.TrimAndRank(ctx, words, e.opts.MinObservations)
	if err != nil {
		return nil, err
	}
	classes, err := e.trueClasses(ctx)
	if err != nil {
		return nil, err
	}
	skip := int(e.opts.SkipFraction * float64(len(classes)*len(classes)))
	if skip >= len(ranked) {
		ranked = nil
	} else {
		ranked = ranked[skip:]
	}
	e.logf("clustering %d ranked words, %d existing classes, skipped %d", len(ranked), len(classes), skip)

	var singles []model.Entity
	remaining := ranked
	chunk := e.opts.InitialChunkSize
	for len(remaining) > 0 {
		n := chunk
		if n > len(remaining) {
			n = len(remaining)
		}
		block := remaining[:n]
		remaining = remaining[n:]
		switch e.opts.Strategy {
		case StrategySingletons:
			classes, singles, err = e.assignToClasses(ctx, block, classes, singles)
		default:
			classes, err = e.blockAssign(ctx, block, classes)
		}
		if err != nil {
			return classes, err
		}
		e.metrics.IncBlocks()
		e.logf("%d words remaining, %d classes (%s)",
			len(remaining), len(classes), e.clock().Format(time.RFC3339))
		chunk *= 2
	}
	return classes, nil
}

// trueClasses loads the persisted classes that already hold two or more
// members, seeding the loop on resume.
func (e *Engine) trueClasses(ctx context.Context) ([]model.Entity, error) {
	all, err := e.store.Classes(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Entity
	for _, c := range all {
		members, err := e.store.Memberships(ctx, c)
		if err != nil {
			return nil, err
		}
		if len(members) >= 2 {
			out = append(out, c)
		}
	}
	return out, nil
}
