package merge

import (
	"context"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
	"github.com/eqiiyao/gramclass/pkg/gram/store"
)

// Semantic merges wb into wa under the overlap-projection policy: the
// class receives the mass the two vectors share, and each constituent
// keeps only the residual outside the overlap. With a positive fraction,
// a further fraction of wb's component aligned with wa crosses into the
// class as well.
//
// When wa is already a class, only wb is projected and orthogonalized
// against it.
func Semantic(ctx context.Context, s store.SectionStore, wa, wb model.Entity, fraction float64) (Result, error) {
	if wa == wb {
		return Result{Class: wa}, ErrSelfMerge
	}
	if wb.IsClass() {
		return Result{Class: wa}, ErrClassConstituent
	}
	if wa.IsClass() {
		return semanticClassWord(ctx, s, wa, wb)
	}
	return semanticWords(ctx, s, wa, wb, fraction)
}

func semanticWords(ctx context.Context, s store.SectionStore, wa, wb model.Entity, fraction float64) (Result, error) {
	pairs, err := s.PairedRightStars(ctx, wa, wb)
	if err != nil {
		return Result{Class: wa}, err
	}

	// u scales wa to wb's component along it, needed for the fractional
	// redistribution of wb's aligned remainder.
	var dot, na2 float64
	for _, p := range pairs {
		a, w := p.Counts()
		dot += a * w
		na2 += a * a
	}
	var u float64
	if na2 > 0 {
		u = dot / na2
	}

	cls := model.ClassOf(wa, wb)
	res := Result{Class: cls, Created: true}
	for _, p := range pairs {
		a, w := p.Counts()
		basis := p.Basis()
		shared := p.Left != nil && p.Right != nil

		var k float64
		if shared {
			k = a + w
		}
		// wb's aligned component beyond the orthogonal residual; its
		// clamped subtraction from wb is what breaks linearity here.
		var extra float64
		if fraction > 0 && p.Right != nil {
			perp := w - u*a
			if perp < 0 {
				perp = 0
			}
			extra = fraction * (w - perp)
		}
		k += extra
		if k <= 0 {
			continue
		}
		if err := s.SetCount(ctx, cls, basis, k); err != nil {
			return res, err
		}
		res.Merged = true
		if shared {
			// the overlap moves wholesale; wa keeps only what lay outside
			if err := s.SetCount(ctx, wa, basis, 0); err != nil {
				return res, err
			}
		}
		if p.Right != nil && (shared || extra > 0) {
			wRes := w
			if shared {
				wRes = 0
			}
			wRes -= extra
			if wRes < 0 {
				res.Clamped++
			}
			if err := s.SetCount(ctx, wb, basis, wRes); err != nil {
				return res, err
			}
		}
	}
	if !res.Merged {
		return Result{Class: wa}, nil
	}
	if err := s.StoreMembership(ctx, wa, cls); err != nil {
		return res, err
	}
	if err := s.StoreMembership(ctx, wb, cls); err != nil {
		return res, err
	}
	return res, nil
}

func semanticClassWord(ctx context.Context, s store.SectionStore, cls, wb model.Entity) (Result, error) {
	pairs, err := s.PairedRightStars(ctx, cls, wb)
	if err != nil {
		return Result{Class: cls}, err
	}
	var dot, l2 float64
	for _, p := range pairs {
		k, w := p.Counts()
		dot += k * w
		l2 += k * k
	}
	if l2 == 0 {
		return Result{Class: cls}, nil
	}
	u := dot / l2

	res := Result{Class: cls}
	for _, p := range pairs {
		if p.Right == nil {
			continue
		}
		k, w := p.Counts()
		residual := w - u*k
		clamped := residual
		if clamped < 0 {
			clamped = 0
			res.Clamped++
		}
		deposit := w - clamped
		if deposit <= 0 {
			continue
		}
		if err := s.SetCount(ctx, cls, p.Basis(), k+deposit); err != nil {
			return res, err
		}
		if err := s.SetCount(ctx, wb, p.Basis(), residual); err != nil {
			return res, err
		}
		res.Merged = true
	}
	if !res.Merged {
		return res, nil
	}
	if err := s.StoreMembership(ctx, wb, cls); err != nil {
		return res, err
	}
	return res, nil
}
