package wallet

import (
	"context"
	"sync"
	"time"

	"giftvault/pkg/platform/sentinel"
)

// InMemoryStore keeps balances in a map for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{wallets: make(map[string]*Wallet)}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *InMemoryStore) Credit(_ context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		w = &Wallet{UserID: userID}
		s.wallets[userID] = w
	}
	w.Balance += amount
	w.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Debit(_ context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if w.Balance < amount {
		return sentinel.ErrInsufficientBalance
	}
	w.Balance -= amount
	w.UpdatedAt = time.Now()
	return nil
}

// Seed sets a balance directly. Test helper.
func (s *InMemoryStore) Seed(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID] = &Wallet{UserID: userID, Balance: balance, UpdatedAt: time.Now()}
}
