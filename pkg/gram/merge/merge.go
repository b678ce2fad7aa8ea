package merge

import (
	"context"
	"errors"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

var (
	// ErrSelfMerge rejects merging an entity with itself.
	ErrSelfMerge = errors.New("cannot merge an entity with itself")
	// ErrClassConstituent rejects a class in the second operand position.
	ErrClassConstituent = errors.New("second merge operand must be a word")
)

// Result reports what a merge did to the store.
type Result struct {
	// Class is the class entity the constituents were merged into. When
	// Merged is false it is the first operand, unchanged.
	Class model.Entity
	// Created is true when this merge created the class.
	Created bool
	// Merged is false when the blended vector had zero length and the
	// merge degenerated to a no-op.
	Merged bool
	// Clamped counts constituent sections deleted because their residual
	// count went non-positive.
	Clamped int
}

// Ortho merges wb into wa under the union-plus-fraction policy and then
// reprojects each constituent so it is orthogonal to the class, clamping
// negative residuals away.
//
// When wa is a word, a new class is created with wa and wb as members;
// when wa is a class, wb joins it. All counts are persisted eagerly; a
// store failure aborts the merge mid-flight and is returned as-is.
func Ortho(ctx context.Context, s store.SectionStore, wa, wb model.Entity, fraction float64) (Result, error) {
	if wa == wb {
		return Result{Class: wa}, ErrSelfMerge
	}
	if wb.IsClass() {
		return Result{Class: wa}, ErrClassConstituent
	}

	cls := wa
	created := false
	if !wa.IsClass() {
		cls = model.ClassOf(wa, wb)
		created = true
	}

	pairs, err := s.PairedRightStars(ctx, wa, wb)
	if err != nil {
		return Result{Class: wa}, err
	}
	var hasLeft, hasRight bool
	for _, p := range pairs {
		hasLeft = hasLeft || p.Left != nil
		hasRight = hasRight || p.Right != nil
	}
	if !hasLeft || !hasRight {
		// an empty support on either side merges with nothing
		return Result{Class: wa}, nil
	}

	// Pass 1: blend the union of the two supports into the class vector.
	// A lone word section contributes only its fraction; a lone class
	// section keeps its full mass (a merge never shrinks a class).
	var l2 float64
	for _, p := range pairs {
		a, w := p.Counts()
		var ac, wc float64
		switch {
		case p.Left != nil && p.Right != nil:
			ac, wc = a, w
		case p.Left != nil:
			if wa.IsClass() {
				ac = a
			} else {
				ac = fraction * a
			}
		default:
			wc = fraction * w
		}
		k := ac + wc
		if k <= 0 {
			continue
		}
		if err := s.SetCount(ctx, cls, p.Basis(), k); err != nil {
			return Result{Class: cls, Created: created}, err
		}
		l2 += k * k
	}
	if l2 == 0 {
		// Nothing crossed into the class; the store was never touched
		// and no class identity comes into existence.
		if created {
			return Result{Class: wa}, nil
		}
		return Result{Class: cls}, nil
	}

	// Pass 2: dot products of the finished class vector against each
	// constituent due for reprojection.
	constituents := []model.Entity{wb}
	if created {
		constituents = []model.Entity{wa, wb}
	}
	type projection struct {
		ent   model.Entity
		pairs []model.SectionPair
		u     float64
	}
	projections := make([]projection, 0, len(constituents))
	for _, e := range constituents {
		epairs, err := s.PairedRightStars(ctx, cls, e)
		if err != nil {
			return Result{Class: cls, Created: created}, err
		}
		projections = append(projections, projection{ent: e, pairs: epairs, u: model.Dot(epairs) / l2})
	}

	// Pass 3: subtract each constituent's component along the class,
	// deleting any section whose residual is not positive.
	res := Result{Class: cls, Created: created, Merged: true}
	for _, proj := range projections {
		for _, p := range proj.pairs {
			k, ec := p.Counts()
			if p.Right == nil {
				// no section to reproject; issue the delete anyway so a
				// stale durable row cannot survive
				if err := s.SetCount(ctx, proj.ent, p.Basis(), 0); err != nil {
					return res, err
				}
				continue
			}
			orth := ec - proj.u*k
			if orth <= 0 {
				res.Clamped++
			}
			if err := s.SetCount(ctx, proj.ent, p.Basis(), orth); err != nil {
				return res, err
			}
		}
	}

	if created {
		if err := s.StoreMembership(ctx, wa, cls); err != nil {
			return res, err
		}
	}
	if err := s.StoreMembership(ctx, wb, cls); err != nil {
		return res, err
	}
	return res, nil
}
