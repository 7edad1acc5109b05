package webhook

import (
	"context"
	"sync"

	"giftvault/pkg/platform/sentinel"
)

// InMemoryStore keeps recorded deliveries in a map keyed by the dedup pair.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[[2]string]*Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[[2]string]*Event)}
}

func (s *InMemoryStore) Insert(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{e.ProviderTxID, e.EventType}
	if _, exists := s.rows[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *e
	s.rows[key] = &cp
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, providerTxID, eventType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[[2]string{providerTxID, eventType}]
	return ok, nil
}

var _ Store = (*InMemoryStore)(nil)
