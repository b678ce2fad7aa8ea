package store

import (
	"context"
	"testing"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

func TestInMemoryStoreSetCountUpsertAndDelete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	w := model.Word("dog")

	if err := s.SetCount(ctx, w, "ctx1", 4); err != nil {
		t.Fatalf("set count: %v", err)
	}
	if c, _ := s.Count(ctx, w, "ctx1"); c != 4 {
		t.Fatalf("expected count 4, got %v", c)
	}

	// a count driven to zero or below removes the section entirely
	if err := s.SetCount(ctx, w, "ctx1", -0.5); err != nil {
		t.Fatalf("delete via set count: %v", err)
	}
	if c, _ := s.Count(ctx, w, "ctx1"); c != 0 {
		t.Fatalf("expected deleted section to read 0, got %v", c)
	}
	secs, _ := s.RightStars(ctx, w)
	if len(secs) != 0 {
		t.Fatalf("expected no sections, got %d", len(secs))
	}
}

func TestInMemoryStoreRightStarsSparsity(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	w := model.Word("dog")
	_ = s.SetCount(ctx, w, "b", 2)
	_ = s.SetCount(ctx, w, "a", 1)
	_ = s.SetCount(ctx, w, "c", 0)

	secs, err := s.RightStars(ctx, w)
	if err != nil {
		t.Fatalf("right stars: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(secs))
	}
	for _, sec := range secs {
		if sec.Count <= 0 {
			t.Fatalf("stored section with non-positive count: %+v", sec)
		}
	}
}

func TestInMemoryStorePairedRightStars(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	a := model.Word("a")
	b := model.Word("b")
	_ = s.SetCount(ctx, a, "x", 3)
	_ = s.SetCount(ctx, a, "y", 3)
	_ = s.SetCount(ctx, b, "y", 3)
	_ = s.SetCount(ctx, b, "z", 3)

	pairs, err := s.PairedRightStars(ctx, a, b)
	if err != nil {
		t.Fatalf("paired right stars: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected union of 3 bases, got %d", len(pairs))
	}
	byBasis := map[model.Basis]model.SectionPair{}
	for _, p := range pairs {
		if p.Left == nil && p.Right == nil {
			t.Fatalf("pair with both slots empty")
		}
		byBasis[p.Basis()] = p
	}
	if p := byBasis["x"]; p.Left == nil || p.Right != nil {
		t.Fatalf("basis x should be left-only: %+v", p)
	}
	if p := byBasis["y"]; p.Left == nil || p.Right == nil {
		t.Fatalf("basis y should be shared: %+v", p)
	}
	if p := byBasis["z"]; p.Left != nil || p.Right == nil {
		t.Fatalf("basis z should be right-only: %+v", p)
	}

	again, _ := s.PairedRightStars(ctx, a, b)
	for i := range pairs {
		if pairs[i].Basis() != again[i].Basis() {
			t.Fatalf("iteration order not consistent across calls")
		}
	}
}

func TestInMemoryStoreRightWildcard(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	w := model.Word("dog")
	_ = s.SetCount(ctx, w, "a", 2.5)
	_ = s.SetCount(ctx, w, "b", 1.5)

	wc, err := s.RightWildcard(ctx, w)
	if err != nil {
		t.Fatalf("right wildcard: %v", err)
	}
	if wc.Total != 4 || wc.Support != 2 {
		t.Fatalf("unexpected wildcard: %+v", wc)
	}
}

func TestInMemoryStoreMemberships(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	cls := model.Class("dog cat")
	other := model.Class("run walk")
	dog := model.Word("dog")

	_ = s.StoreMembership(ctx, dog, cls)
	_ = s.StoreMembership(ctx, dog, cls) // idempotent
	_ = s.StoreMembership(ctx, model.Word("cat"), cls)
	_ = s.StoreMembership(ctx, dog, other) // a word may hold several senses

	members, _ := s.Memberships(ctx, cls)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}
	classes, _ := s.MemberOf(ctx, dog)
	if len(classes) != 2 {
		t.Fatalf("expected dog in 2 classes, got %v", classes)
	}
	all, _ := s.Classes(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 classes, got %v", all)
	}
}

func TestInMemoryStoreWordsExcludesClasses(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.SetCount(ctx, model.Word("dog"), "a", 1)
	_ = s.SetCount(ctx, model.Class("dog cat"), "a", 1)

	words, _ := s.Words(ctx)
	if len(words) != 1 || words[0].Name != "dog" {
		t.Fatalf("expected only the word entity, got %v", words)
	}
}
