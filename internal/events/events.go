// Package events carries post-commit ledger events to external consumers.
// Emission happens strictly after the transactional unit commits, so the
// ledger's atomic boundary never includes side effects to other systems.
package events

import (
	"context"
	"time"
)

// Event types emitted by the ledger.
const (
	TypeEscrowCreated  = "escrow.created"
	TypeEscrowReleased = "escrow.released"
	TypeEscrowRefunded = "escrow.refunded"
	TypeEscrowExpired  = "escrow.expired"
	TypeEscrowDisputed = "escrow.disputed"
	TypeDirectPayment  = "payment.direct"
)

// Event is one post-commit fact about the ledger.
type Event struct {
	Type       string            `json:"type"`
	EscrowID   string            `json:"escrowId,omitempty"`
	UserID     string            `json:"userId,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher delivers events to a sink. Delivery failure must never propagate
// into ledger call paths; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// InMemoryPublisher records events for tests and local runs.
type InMemoryPublisher struct {
	ch chan Event
}

// NewInMemoryPublisher creates a recording publisher with the given buffer.
func NewInMemoryPublisher(buffer int) *InMemoryPublisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &InMemoryPublisher{ch: make(chan Event, buffer)}
}

// Publish buffers the event, dropping when full rather than blocking a
// request path.
func (p *InMemoryPublisher) Publish(_ context.Context, event Event) error {
	select {
	case p.ch <- event:
	default:
	}
	return nil
}

// Inbox exposes the buffer for a draining Worker.
func (p *InMemoryPublisher) Inbox() <-chan Event {
	return p.ch
}

// Drain returns all currently buffered events. Test helper.
func (p *InMemoryPublisher) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-p.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
