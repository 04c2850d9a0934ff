package store

import (
	"context"
	"sync"

	"civreg/internal/contract/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// InMemory keeps contracts in process. Used by unit tests and local runs.
type InMemory struct {
	mu        sync.RWMutex
	contracts map[id.ClientCode][]*models.ServiceContract
}

func NewInMemory() *InMemory {
	return &InMemory{contracts: make(map[id.ClientCode][]*models.ServiceContract)}
}

// Create registers a contract. A client may hold many contracts over time;
// the non-overlap of validity windows is the closing operation's concern.
func (s *InMemory) Create(_ context.Context, c *models.ServiceContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contracts[c.ClientCode] {
		if existing.ID == c.ID {
			return sentinel.ErrConflict
		}
	}
	s.contracts[c.ClientCode] = append(s.contracts[c.ClientCode], c)
	return nil
}

// FindActive returns the contract covering the request time for a client.
func (s *InMemory) FindActive(ctx context.Context, clientCode id.ClientCode) (*models.ServiceContract, error) {
	now := requestcontext.Now(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contracts[clientCode] {
		if c.ActiveAt(now) {
			return c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindByClient lists every contract ever held by a client, newest first is
// not guaranteed; callers sort as needed.
func (s *InMemory) FindByClient(_ context.Context, clientCode id.ClientCode) ([]*models.ServiceContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ServiceContract, len(s.contracts[clientCode]))
	copy(out, s.contracts[clientCode])
	return out, nil
}

// Replace swaps a contract for its amended copy (e.g. after closing).
func (s *InMemory) Replace(_ context.Context, c *models.ServiceContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.contracts[c.ClientCode]
	for i, existing := range list {
		if existing.ID == c.ID {
			list[i] = c
			return nil
		}
	}
	return sentinel.ErrNotFound
}
