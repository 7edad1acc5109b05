package escrow

import (
	"context"
	"time"
)

// Store persists escrow transactions and ledger entries. Mutating methods
// must join the transactional unit carried in ctx.
type Store interface {
	// Create inserts a new pending escrow row.
	Create(ctx context.Context, txn *Transaction) error
	// Get returns the escrow, or sentinel.ErrNotFound.
	Get(ctx context.Context, id string) (*Transaction, error)
	// GetForUpdate acquires the exclusive, non-blocking lease on the escrow
	// row and returns its current state. Returns sentinel.ErrLockContention
	// immediately when another operation holds the lease, and
	// sentinel.ErrNotFound for a missing row. Must be called inside a
	// transactional unit; the lease holds until the unit completes.
	GetForUpdate(ctx context.Context, id string) (*Transaction, error)
	// SetStatus transitions id from -> to, compare-and-set style. Returns
	// sentinel.ErrInvalidState when the row is no longer in from.
	SetStatus(ctx context.Context, id string, from, to Status, at time.Time) error
	// ListExpired returns IDs of pending escrows whose expiry is at or before
	// now, oldest first, capped at limit.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	// AppendEntry appends one ledger entry.
	AppendEntry(ctx context.Context, entry *LedgerEntry) error
	// EntriesByEscrow lists entries for an escrow in append order.
	EntriesByEscrow(ctx context.Context, escrowID string) ([]LedgerEntry, error)
}
