package store

import (
	"context"
	"sort"
	"sync"

	"github.com/eqiiyao/gramclass/pkg/gram/model"
)

// InMemoryStore implements SectionStore for tests and lightweight runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	rows    map[model.Entity]model.Vector
	members map[model.Entity][]model.Entity // class -> words, insertion order
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:    make(map[model.Entity]model.Vector),
		members: make(map[model.Entity][]model.Entity),
	}
}

func (s *InMemoryStore) Count(_ context.Context, ent model.Entity, basis model.Basis) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[ent][basis], nil
}

func (s *InMemoryStore) SetCount(_ context.Context, ent model.Entity, basis model.Basis, count float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[ent]
	if count <= 0 {
		if ok {
			delete(row, basis)
			if len(row) == 0 {
				delete(s.rows, ent)
			}
		}
		return nil
	}
	if !ok {
		row = make(model.Vector)
		s.rows[ent] = row
	}
	row[basis] = count
	return nil
}

func (s *InMemoryStore) RightStars(_ context.Context, ent model.Entity) ([]model.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rightStarsLocked(ent), nil
}

func (s *InMemoryStore) rightStarsLocked(ent model.Entity) []model.Section {
	row := s.rows[ent]
	secs := make([]model.Section, 0, len(row))
	for basis, count := range row {
		secs = append(secs, model.Section{Entity: ent, Basis: basis, Count: count})
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i].Basis < secs[j].Basis })
	return secs
}

func (s *InMemoryStore) PairedRightStars(_ context.Context, left, right model.Entity) ([]model.SectionPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pairSections(s.rightStarsLocked(left), s.rightStarsLocked(right)), nil
}

func (s *InMemoryStore) RightWildcard(_ context.Context, ent model.Entity) (model.Wildcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.rows[ent]
	return model.Wildcard{Entity: ent, Total: row.Total(), Support: len(row)}, nil
}

func (s *InMemoryStore) StoreMembership(_ context.Context, word, class model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[class] {
		if m == word {
			return nil
		}
	}
	s.members[class] = append(s.members[class], word)
	return nil
}

func (s *InMemoryStore) Memberships(_ context.Context, class model.Entity) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Entity(nil), s.members[class]...), nil
}

func (s *InMemoryStore) MemberOf(_ context.Context, word model.Entity) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	classes := make([]model.Entity, 0)
	for class, words := range s.members {
		for _, w := range words {
			if w == word {
				classes = append(classes, class)
				break
			}
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (s *InMemoryStore) Words(_ context.Context) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	words := make([]model.Entity, 0, len(s.rows))
	for ent := range s.rows {
		if !ent.IsClass() {
			words = append(words, ent)
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Name < words[j].Name })
	return words, nil
}

func (s *InMemoryStore) Classes(_ context.Context) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	classes := make([]model.Entity, 0, len(s.members))
	for class := range s.members {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}
