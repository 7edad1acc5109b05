package idempotency

import (
	"context"
	"sync"
	"time"

	"giftvault/pkg/platform/sentinel"
)

// InMemoryStore is the test and fallback implementation. Unlike Redis it has
// no native TTL, so a periodic Sweep purges expired records.
type InMemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]Record
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{ttl: ttl, records: make(map[string]Record)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, sentinel.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *InMemoryStore) Put(_ context.Context, rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[rec.Key]; ok && now.Before(existing.ExpiresAt) {
		cp := existing
		return &cp, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
	s.records[rec.Key] = rec
	cp := rec
	return &cp, nil
}

// Sweep removes records past their expiry and reports how many were purged.
func (s *InMemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, key)
			purged++
		}
	}
	return purged
}
