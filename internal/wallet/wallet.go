// Package wallet holds per-user balances. Balances are minor currency units
// and never go negative; the store enforces that inside the caller's
// transactional unit.
package wallet

import (
	"context"
	"time"
)

// PlatformAccount receives commission credits at release time.
const PlatformAccount = "platform"

// Wallet is one user's balance.
type Wallet struct {
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// Store mutates balances. Implementations must join the transactional unit
// carried in ctx so a debit or credit commits atomically with the ledger
// entry and status transition that justify it.
type Store interface {
	// Get returns the wallet, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID string) (*Wallet, error)
	// Credit adds amount to the wallet, creating it at zero first if absent.
	Credit(ctx context.Context, userID string, amount int64) error
	// Debit subtracts amount. Returns sentinel.ErrInsufficientBalance when
	// the balance cannot cover it, sentinel.ErrNotFound when no wallet exists.
	Debit(ctx context.Context, userID string, amount int64) error
}
