package rank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

func seedTotals(t *testing.T, s *store.InMemoryStore, totals map[string]float64) []model.Entity {
	t.Helper()
	ctx := context.Background()
	ents := make([]model.Entity, 0, len(totals))
	for name, total := range totals {
		w := model.Word(name)
		require.NoError(t, s.SetCount(ctx, w, "ctx", total))
		ents = append(ents, w)
	}
	return ents
}

func TestTrimAndRank(t *testing.T) {
	s := store.NewInMemoryStore()
	seedTotals(t, s, map[string]float64{"a": 5, "b": 25, "c": 100, "d": 18})
	ix := NewIndex(s)
	ctx := context.Background()

	list := []model.Entity{model.Word("a"), model.Word("b"), model.Word("c"), model.Word("d")}
	require.NoError(t, ix.Prefetch(ctx, list, 2))

	ranked, err := ix.TrimAndRank(ctx, list, 20)
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{model.Word("c"), model.Word("b")}, ranked)
}

func TestTrimAndRankStableOnTies(t *testing.T) {
	s := store.NewInMemoryStore()
	seedTotals(t, s, map[string]float64{"x": 30, "y": 30, "z": 30})
	ix := NewIndex(s)
	ctx := context.Background()

	list := []model.Entity{model.Word("y"), model.Word("x"), model.Word("z")}
	ranked, err := ix.TrimAndRank(ctx, list, 20)
	require.NoError(t, err)
	assert.Equal(t, list, ranked, "equal totals must keep input order")
}

func TestTrimAndRankIdempotent(t *testing.T) {
	s := store.NewInMemoryStore()
	seedTotals(t, s, map[string]float64{"a": 50, "b": 40, "c": 30})
	ix := NewIndex(s)
	ctx := context.Background()

	list := []model.Entity{model.Word("c"), model.Word("a"), model.Word("b")}
	once, err := ix.TrimAndRank(ctx, list, 0)
	require.NoError(t, err)
	twice, err := ix.TrimAndRank(ctx, once, 0)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestObservationTotalLagsUntilRefresh(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	w := model.Word("dog")
	require.NoError(t, s.SetCount(ctx, w, "ctx", 10))
	ix := NewIndex(s)

	total, err := ix.ObservationTotal(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 10.0, total)

	// mass moves underneath the cache; the cached total lags
	require.NoError(t, s.SetCount(ctx, w, "ctx", 4))
	total, err = ix.ObservationTotal(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 10.0, total)

	total, err = ix.Refresh(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 4.0, total)
}
