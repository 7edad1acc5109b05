// Package tx carries a transaction handle and its acquired row leases through
// context so stores can join the caller's atomic unit without plumbing an
// explicit transaction parameter through every signature.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKeyType struct{}

var txKey = txKeyType{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	t, ok := ctx.Value(txKey).(pgx.Tx)
	return t, ok
}

type leaseKeyType struct{}

var leaseKey = leaseKeyType{}

// LeaseSet tracks per-aggregate leases acquired inside a transactional unit.
// Postgres stores do not need it (row locks release on commit/rollback); the
// in-memory stores register their try-locks here so the runner can release
// them when the unit completes.
type LeaseSet struct {
	releases []func()
}

// WithLeaseSet attaches a lease set to ctx. Transaction runners call this
// before invoking the unit body.
func WithLeaseSet(ctx context.Context, ls *LeaseSet) context.Context {
	if ls == nil {
		return ctx
	}
	return context.WithValue(ctx, leaseKey, ls)
}

// Leases extracts the lease set from ctx if present.
func Leases(ctx context.Context) (*LeaseSet, bool) {
	ls, ok := ctx.Value(leaseKey).(*LeaseSet)
	return ls, ok
}

// Register records a release hook for a lease acquired inside the unit.
func (l *LeaseSet) Register(release func()) {
	if release != nil {
		l.releases = append(l.releases, release)
	}
}

// ReleaseAll releases leases in reverse acquisition order.
func (l *LeaseSet) ReleaseAll() {
	for i := len(l.releases) - 1; i >= 0; i-- {
		l.releases[i]()
	}
	l.releases = nil
}
