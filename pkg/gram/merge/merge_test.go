package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

func seed(t *testing.T, s *store.InMemoryStore, ent model.Entity, vec model.Vector) {
	t.Helper()
	ctx := context.Background()
	for basis, count := range vec {
		require.NoError(t, s.SetCount(ctx, ent, basis, count))
	}
}

func vectorOf(t *testing.T, s *store.InMemoryStore, ent model.Entity) model.Vector {
	t.Helper()
	secs, err := s.RightStars(context.Background(), ent)
	require.NoError(t, err)
	vec := make(model.Vector, len(secs))
	for _, sec := range secs {
		vec[sec.Basis] = sec.Count
	}
	return vec
}

func assertVector(t *testing.T, s *store.InMemoryStore, ent model.Entity, want model.Vector) {
	t.Helper()
	got := vectorOf(t, s, ent)
	require.Len(t, got, len(want), "support of %v: got %v want %v", ent, got, want)
	for basis, count := range want {
		assert.InDelta(t, count, got[basis], 1e-6, "count of (%v, %s)", ent, basis)
	}
}

func totalMass(t *testing.T, s *store.InMemoryStore, ents ...model.Entity) float64 {
	t.Helper()
	var total float64
	for _, ent := range ents {
		total += vectorOf(t, s, ent).Total()
	}
	return total
}

func TestOrthoMergeMirroredWords(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 4, "y": 2})
	seed(t, s, b, model.Vector{"x": 2, "y": 4})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 0.3)
	require.NoError(t, err)
	require.True(t, res.Merged)
	require.True(t, res.Created)
	assert.Equal(t, model.Class("a b"), res.Class)

	// shared bases blend wholesale: K = {x:6, y:6}; u = 36/72 = 0.5
	assertVector(t, s, res.Class, model.Vector{"x": 6, "y": 6})
	assertVector(t, s, a, model.Vector{"x": 1})
	assertVector(t, s, b, model.Vector{"y": 1})
	assert.Equal(t, 2, res.Clamped)

	members, err := s.Memberships(ctx, res.Class)
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{a, b}, members)
}

func TestOrthoMergePartialOverlap(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 3, "y": 3})
	seed(t, s, b, model.Vector{"y": 3, "z": 3})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 0.3)
	require.NoError(t, err)
	require.True(t, res.Merged)

	// overlap contributes in full, lone word bases at the fraction
	assertVector(t, s, res.Class, model.Vector{"x": 0.9, "y": 6, "z": 0.9})

	// L² = 37.62, ⟨A,K⟩ = 20.7, u ≈ 0.55024
	assertVector(t, s, a, model.Vector{"x": 2.5047847})
	assertVector(t, s, b, model.Vector{"z": 2.5047847})
	assert.Equal(t, 2, res.Clamped)
}

func TestOrthoMergeEmptySupportIsNoOp(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, b, model.Vector{"y": 1})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 0.3)
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, a, res.Class)

	classes, err := s.Classes(ctx)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assertVector(t, s, b, model.Vector{"y": 1})
}

func TestOrthoMergeDisjointZeroFraction(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 10})
	seed(t, s, b, model.Vector{"y": 10})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 0)
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, a, res.Class, "no class identity without deposited mass")

	classes, err := s.Classes(ctx)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assertVector(t, s, a, model.Vector{"x": 10})
	assertVector(t, s, b, model.Vector{"y": 10})
}

func TestOrthoMergeDisjointFullFraction(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 10})
	seed(t, s, b, model.Vector{"y": 10})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 1)
	require.NoError(t, err)
	require.True(t, res.Merged)

	// K takes the full sum; u = 0.5 on both sides
	assertVector(t, s, res.Class, model.Vector{"x": 10, "y": 10})
	assertVector(t, s, a, model.Vector{"x": 5})
	assertVector(t, s, b, model.Vector{"y": 5})
}

func TestOrthoMergeIntoClassNeverShrinksIt(t *testing.T) {
	s := store.NewInMemoryStore()
	cls := model.Class("a b")
	c := model.Word("c")
	seed(t, s, cls, model.Vector{"x": 6, "y": 6})
	seed(t, s, c, model.Vector{"z": 8})
	ctx := context.Background()

	res, err := Ortho(ctx, s, cls, c, 0.3)
	require.NoError(t, err)
	require.True(t, res.Merged)
	assert.False(t, res.Created)
	assert.Equal(t, cls, res.Class)

	// lone class bases keep full mass, the lone word basis joins at 0.3
	assertVector(t, s, cls, model.Vector{"x": 6, "y": 6, "z": 2.4})
	// L² = 77.76, ⟨C,K⟩ = 19.2, u ≈ 0.246914
	assertVector(t, s, c, model.Vector{"z": 7.4074074})

	members, err := s.Memberships(ctx, cls)
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{c}, members, "only the joining word gains a membership record")
}

func TestOrthoMergeMassConservedForParallelVectors(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 4, "y": 2})
	seed(t, s, b, model.Vector{"x": 2, "y": 1})
	ctx := context.Background()

	pre := totalMass(t, s, a, b)
	res, err := Ortho(ctx, s, a, b, 0.3)
	require.NoError(t, err)
	require.True(t, res.Merged)

	// parallel constituents project away exactly: residuals vanish and
	// the class holds the entire pre-merge mass
	assertVector(t, s, res.Class, model.Vector{"x": 6, "y": 3})
	assert.Empty(t, vectorOf(t, s, a))
	assert.Empty(t, vectorOf(t, s, b))
	assert.InDelta(t, pre, totalMass(t, s, res.Class, a, b), 1e-9)

	// with nothing left of b, the class cannot match it again
	pairs, err := s.PairedRightStars(ctx, res.Class, b)
	require.NoError(t, err)
	assert.Zero(t, model.Cosine(pairs))
}

func TestOrthoMergeSparsityInvariant(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	b := model.Word("b")
	seed(t, s, a, model.Vector{"x": 4, "y": 2, "z": 1})
	seed(t, s, b, model.Vector{"x": 2, "y": 4, "w": 3})
	ctx := context.Background()

	res, err := Ortho(ctx, s, a, b, 0.3)
	require.NoError(t, err)
	require.True(t, res.Merged)

	for _, ent := range []model.Entity{res.Class, a, b} {
		for basis, count := range vectorOf(t, s, ent) {
			assert.Greater(t, count, 0.0, "(%v, %s) must stay positive", ent, basis)
		}
	}
}

func TestOrthoMergeSelfRejected(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	seed(t, s, a, model.Vector{"x": 1})

	_, err := Ortho(context.Background(), s, a, a, 0.3)
	assert.ErrorIs(t, err, ErrSelfMerge)
}

func TestOrthoMergeClassConstituentRejected(t *testing.T) {
	s := store.NewInMemoryStore()
	a := model.Word("a")
	cls := model.Class("b c")

	_, err := Ortho(context.Background(), s, a, cls, 0.3)
	assert.ErrorIs(t, err, ErrClassConstituent)
}
