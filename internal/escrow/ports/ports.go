// Package ports declares the external collaborator interfaces the escrow
// ledger consumes. Implementations live outside this module; memory fakes are
// provided for tests and local runs.
package ports

import "context"

// ProofVerifier reports whether proof-of-completion has been verified for an
// escrow. Consulted before release when the escrow's condition requires it.
type ProofVerifier interface {
	IsVerified(ctx context.Context, escrowID string) (bool, error)
}

// Notifier dispatches user-facing notifications. Fire-and-forget: failures
// are logged by the caller and never roll back a ledger commit.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]string) error
}
