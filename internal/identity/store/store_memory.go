package store

import (
	"context"
	"sync"
	"time"

	"civreg/internal/identity/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps identities and merge snapshots in process. Used by unit
// tests and local runs; the orchestrator provides per-CUID write
// serialization, so this store only guards its own maps.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.CUID]*models.Identity
	snapshots  map[id.CUID]snapshot
}

type snapshot struct {
	attrs   models.AttributeSet
	takenAt time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[id.CUID]*models.Identity),
		snapshots:  make(map[id.CUID]snapshot),
	}
}

func (s *InMemory) Create(_ context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[ident.CUID]; exists {
		return sentinel.ErrConflict
	}
	s.identities[ident.CUID] = clone(ident)
	return nil
}

func (s *InMemory) FindByCUID(_ context.Context, cuid id.CUID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[cuid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(ident), nil
}

// Update replaces the stored snapshot wholesale.
func (s *InMemory) Update(_ context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[ident.CUID]; !ok {
		return sentinel.ErrNotFound
	}
	s.identities[ident.CUID] = clone(ident)
	return nil
}

// FindCandidates returns every mutable identity holding a value on at least
// one of the given keys. The in-memory store over-returns by design; the
// duplicate evaluator applies the precise matching.
func (s *InMemory) FindCandidates(_ context.Context, _ models.AttributeSet, keys []id.AttrKey) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Identity
	for _, ident := range s.identities {
		if !ident.IsMutable() {
			continue
		}
		for _, key := range keys {
			if a, ok := ident.Attributes[key]; ok && a.Value != "" {
				out = append(out, clone(ident))
				break
			}
		}
	}
	return out, nil
}

func (s *InMemory) SaveSnapshot(_ context.Context, cuid id.CUID, attrs models.AttributeSet, takenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[cuid] = snapshot{attrs: attrs.Clone(), takenAt: takenAt}
	return nil
}

func (s *InMemory) LoadSnapshot(_ context.Context, cuid id.CUID) (models.AttributeSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[cuid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return snap.attrs.Clone(), nil
}

func (s *InMemory) DeleteSnapshot(_ context.Context, cuid id.CUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, cuid)
	return nil
}

func clone(ident *models.Identity) *models.Identity {
	out := *ident
	out.Attributes = ident.Attributes.Clone()
	return &out
}
