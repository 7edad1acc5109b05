package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: uniqueness constraint hit (duplicate webhook, open dispute)
// - ErrInsufficientBalance: wallet cannot cover the requested debit
// - ErrInvalidState: entity in wrong status for requested transition
// - ErrLockContention: row lease held by a concurrent operation
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state")
	ErrLockContention      = errors.New("lock contention")
	ErrUnavailable         = errors.New("unavailable")
)
