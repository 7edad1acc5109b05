// Package dispute freezes a pending escrow while the parties contest it and
// records the arbitration outcome. At most one open dispute exists per escrow.
package dispute

import (
	"context"
	"time"
)

// Status of a dispute.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Resolution is the arbitration verdict.
type Resolution string

const (
	ResolutionRelease Resolution = "release"
	ResolutionRefund  Resolution = "refund"
)

// Dispute is one contested escrow. Deadlines bound the external arbitration
// process: the counterparty must respond by ResponseDeadline and a verdict is
// due by ReviewDeadline.
type Dispute struct {
	ID               string
	EscrowID         string
	OpenedBy         string
	Reason           string
	Evidence         []string
	Status           Status
	Resolution       Resolution
	ResolvedBy       string
	ResponseDeadline time.Time
	ReviewDeadline   time.Time
	OpenedAt         time.Time
	ResolvedAt       *time.Time
}

// Store persists disputes. Mutating methods join the transactional unit
// carried in ctx.
type Store interface {
	// Create inserts an open dispute. Returns sentinel.ErrConflict when an
	// open dispute already exists for the escrow.
	Create(ctx context.Context, d *Dispute) error
	// Get returns the dispute, or sentinel.ErrNotFound.
	Get(ctx context.Context, id string) (*Dispute, error)
	// GetOpenByEscrow returns the open dispute for an escrow, or
	// sentinel.ErrNotFound.
	GetOpenByEscrow(ctx context.Context, escrowID string) (*Dispute, error)
	// Resolve marks an open dispute resolved, compare-and-set style. Returns
	// sentinel.ErrInvalidState when the dispute is already resolved and
	// sentinel.ErrNotFound when it does not exist.
	Resolve(ctx context.Context, id string, resolution Resolution, resolvedBy string, at time.Time) error
}
