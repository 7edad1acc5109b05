package dispute

import (
	"context"
	"sync"
	"time"

	"giftvault/pkg/platform/sentinel"
)

// InMemoryStore keeps disputes in a map. Used by tests and memory-backed runs.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Dispute
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*Dispute)}
}

func (s *InMemoryStore) Create(_ context.Context, d *Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.EscrowID == d.EscrowID && row.Status == StatusOpen {
			return sentinel.ErrConflict
		}
	}
	cp := *d
	s.rows[d.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) GetOpenByEscrow(_ context.Context, escrowID string) (*Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.EscrowID == escrowID && row.Status == StatusOpen {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Resolve(_ context.Context, id string, resolution Resolution, resolvedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if row.Status != StatusOpen {
		return sentinel.ErrInvalidState
	}
	row.Status = StatusResolved
	row.Resolution = resolution
	row.ResolvedBy = resolvedBy
	row.ResolvedAt = &at
	return nil
}

var _ Store = (*InMemoryStore)(nil)
