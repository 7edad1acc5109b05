// Package escrow defines the escrow transaction aggregate, its status
// machine, and the append-only ledger entries that prove fund movement.
package escrow

import (
	"time"

	"giftvault/internal/commission"
	"giftvault/internal/proofgate"
)

// Status is the escrow state machine position.
//
// pending -> {released, refunded, disputed, expired}
// disputed -> {released, refunded}
// released, refunded, expired are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
	StatusDisputed Status = "disputed"
	StatusExpired  Status = "expired"
)

var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusReleased: true,
		StatusRefunded: true,
		StatusDisputed: true,
		StatusExpired:  true,
	},
	StatusDisputed: {
		StatusReleased: true,
		StatusRefunded: true,
	},
}

// CanTransition reports whether the status machine permits from -> to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Terminal reports whether a status permits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Extension is the versioned, typed extension payload attached to an escrow.
// New fields bump Version; call sites never stuff untyped blobs here.
type Extension struct {
	Version     int    `json:"version"`
	Kind        string `json:"kind,omitempty"`
	GiftMessage string `json:"giftMessage,omitempty"`
	ProviderRef string `json:"providerRef,omitempty"`
}

// Transaction is the escrow aggregate root. Rows are never deleted, only
// terminalized; the ledger entries are the durable audit trail.
type Transaction struct {
	ID               string
	SenderID         string
	RecipientID      string
	SubjectID        string
	Amount           int64
	Currency         string
	Status           Status
	ReleaseCondition proofgate.Requirement
	TransferDelay    time.Duration
	ExpiresAt        time.Time
	Commission       commission.Breakdown
	Extension        Extension
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	// EntryLock records the sender debit that funds a pending escrow.
	EntryLock EntryKind = "lock"
	// EntryRelease records the recipient credit at release.
	EntryRelease EntryKind = "release"
	// EntryRefund records the sender credit at refund or expiry.
	EntryRefund EntryKind = "refund"
	// EntryCommission records the platform's cut.
	EntryCommission EntryKind = "commission"
	// EntryDirect records a direct payment that bypassed escrow.
	EntryDirect EntryKind = "direct"
)

// LedgerEntry is one fund movement, appended in the same atomic unit as the
// wallet mutation it proves. EscrowID is empty for direct payments.
type LedgerEntry struct {
	ID         string
	EscrowID   string
	Kind       EntryKind
	FromUserID string
	ToUserID   string
	Amount     int64
	Currency   string
	RecordedAt time.Time
}

// Result is the outcome of a release or refund. Field order is fixed so the
// JSON cached in the idempotency store is byte-identical to a recomputed
// payload, differing only in Idempotent.
type Result struct {
	EscrowID      string `json:"escrowId"`
	Status        Status `json:"status"`
	TransactionID string `json:"transactionId"`
	Idempotent    bool   `json:"idempotent"`
}

// CreateResult is the outcome of escrow creation, covering both the pending
// branch and the direct-pay bypass.
type CreateResult struct {
	EscrowID      string                `json:"escrowId,omitempty"`
	Requirement   proofgate.Requirement `json:"requirement"`
	Direct        bool                  `json:"direct"`
	TransactionID string                `json:"transactionId,omitempty"`
	GiverPays     int64                 `json:"giverPays"`
	ReceiverGets  int64                 `json:"receiverGets"`
}
