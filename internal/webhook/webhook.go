// Package webhook ingests payment-provider callbacks. Providers redeliver at
// least once; the (provider_tx_id, event_type) uniqueness plus the ledger's
// idempotency keys make redelivery harmless.
package webhook

import (
	"context"
	"encoding/json"
	"time"
)

// Provider event types the ingest path acts on. Anything else is recorded
// for audit and acked without a ledger call.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventPaymentReversed = "payment.reversed"
)

// Event is one recorded provider delivery.
type Event struct {
	ID           string
	Provider     string
	ProviderTxID string
	EventType    string
	EscrowID     string
	Payload      json.RawMessage
	ReceivedAt   time.Time
}

// Store records deliveries with (provider_tx_id, event_type) uniqueness.
type Store interface {
	// Insert records the delivery. Returns sentinel.ErrConflict when the same
	// (provider_tx_id, event_type) pair was already recorded.
	Insert(ctx context.Context, e *Event) error
	// Exists reports whether a delivery with this pair was recorded.
	Exists(ctx context.Context, providerTxID, eventType string) (bool, error)
}
