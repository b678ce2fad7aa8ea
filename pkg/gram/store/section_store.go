package store

import (
	"context"
	"sort"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

// SectionStore defines the contract every backing store must satisfy.
// Counts are persisted eagerly: SetCount with a positive count upserts,
// anything else deletes the section from both the in-memory index and the
// durable store. A missing section reads as count 0, never as an error.
type SectionStore interface {
	// Count returns the current count of (entity, basis), or 0 if absent.
	Count(ctx context.Context, ent model.Entity, basis model.Basis) (float64, error)

	// SetCount upserts the section when count > 0 and deletes it otherwise.
	SetCount(ctx context.Context, ent model.Entity, basis model.Basis, count float64) error

	// RightStars returns every extant section with ent on the left.
	RightStars(ctx context.Context, ent model.Entity) ([]model.Section, error)

	// PairedRightStars co-iterates the union of the two supports. Order is
	// unspecified but consistent within a single call.
	PairedRightStars(ctx context.Context, left, right model.Entity) ([]model.SectionPair, error)

	// RightWildcard returns the cached marginals of ent. Callers prefetch
	// wildcards before ranking.
	RightWildcard(ctx context.Context, ent model.Entity) (model.Wildcard, error)

	// StoreMembership persists word ∈ class. Membership is many-to-many
	// and idempotent.
	StoreMembership(ctx context.Context, word, class model.Entity) error

	// Memberships lists the member words of a class.
	Memberships(ctx context.Context, class model.Entity) ([]model.Entity, error)

	// MemberOf lists every class the word belongs to.
	MemberOf(ctx context.Context, word model.Entity) ([]model.Entity, error)

	// Words lists every atomic entity with at least one section.
	Words(ctx context.Context) ([]model.Entity, error)

	// Classes lists every class with a persisted membership record.
	Classes(ctx context.Context) ([]model.Entity, error)
}

// SchemaInitializer allows stores to expose optional schema/bootstrap
// routines.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}

// pairSections zips two section lists into a co-iteration over the union
// of their bases, sorted by basis for call-to-call consistency.
func pairSections(left, right []model.Section) []model.SectionPair {
	byBasis := make(map[model.Basis]*model.SectionPair, len(left)+len(right))
	bases := make([]model.Basis, 0, len(left)+len(right))
	for i := range left {
		sec := left[i]
		byBasis[sec.Basis] = &model.SectionPair{Left: &sec}
		bases = append(bases, sec.Basis)
	}
	for i := range right {
		sec := right[i]
		if p, ok := byBasis[sec.Basis]; ok {
			p.Right = &sec
			continue
		}
		byBasis[sec.Basis] = &model.SectionPair{Right: &sec}
		bases = append(bases, sec.Basis)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	pairs := make([]model.SectionPair, 0, len(bases))
	for _, b := range bases {
		pairs = append(pairs, *byBasis[b])
	}
	return pairs
}
