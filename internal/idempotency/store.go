// Package idempotency caches the result of release/refund operations under a
// caller-supplied key so retries return the original outcome instead of
// moving money again. Expiry is advisory cleanup only; the escrow's own
// terminal status is the real double-execution safety net.
package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Operation names the ledger operation a record caches.
type Operation string

const (
	OperationRelease Operation = "release"
	OperationRefund  Operation = "refund"
)

// DefaultTTL is the retention window for cached results.
const DefaultTTL = 30 * 24 * time.Hour

// Record is one cached operation result.
type Record struct {
	Key       string          `json:"key"`
	EscrowID  string          `json:"escrowId"`
	Operation Operation       `json:"operation"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Store caches operation results by key. Lookups are read-only and never take
// the per-escrow lease.
type Store interface {
	// Get returns the record for key, or sentinel.ErrNotFound on a miss.
	Get(ctx context.Context, key string) (*Record, error)
	// Put stores rec under its key with first-writer-wins semantics: when two
	// writers race, both receive the record that actually won, never an
	// error.
	Put(ctx context.Context, rec Record) (*Record, error)
}
