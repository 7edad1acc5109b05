package escrow

import (
	"context"
	"sort"
	"sync"
	"time"

	"giftvault/pkg/platform/sentinel"
	platformtx "giftvault/pkg/platform/tx"
)

// InMemoryStore keeps escrows and ledger entries in maps. Row leases are
// per-ID try-locks released when the surrounding transactional unit
// completes, mirroring FOR UPDATE NOWAIT semantics closely enough for the
// concurrency tests to be meaningful.
type InMemoryStore struct {
	mu      sync.RWMutex
	rows    map[string]*Transaction
	entries []LedgerEntry
	leases  map[string]*sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:   make(map[string]*Transaction),
		leases: make(map[string]*sync.Mutex),
	}
}

func (s *InMemoryStore) Create(_ context.Context, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[txn.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *txn
	s.rows[txn.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) GetForUpdate(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	lease, ok := s.leases[id]
	if !ok {
		lease = &sync.Mutex{}
		s.leases[id] = lease
	}
	s.mu.Unlock()

	if !lease.TryLock() {
		return nil, sentinel.ErrLockContention
	}
	if ls, ok := platformtx.Leases(ctx); ok {
		ls.Register(lease.Unlock)
	} else {
		// Not inside a unit; nothing will release the lease later.
		defer lease.Unlock()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, id string, from, to Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if row.Status != from {
		return sentinel.ErrInvalidState
	}
	row.Status = to
	row.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type due struct {
		id string
		at time.Time
	}
	var dues []due
	for id, row := range s.rows {
		if row.Status == StatusPending && !row.ExpiresAt.After(now) {
			dues = append(dues, due{id: id, at: row.ExpiresAt})
		}
	}
	sort.Slice(dues, func(i, j int) bool { return dues[i].at.Before(dues[j].at) })
	ids := make([]string, 0, len(dues))
	for _, d := range dues {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, d.id)
	}
	return ids, nil
}

func (s *InMemoryStore) AppendEntry(_ context.Context, entry *LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemoryStore) EntriesByEscrow(_ context.Context, escrowID string) ([]LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LedgerEntry
	for _, e := range s.entries {
		if e.EscrowID == escrowID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AllEntries returns every ledger entry in append order. Test helper.
func (s *InMemoryStore) AllEntries() []LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LedgerEntry{}, s.entries...)
}
