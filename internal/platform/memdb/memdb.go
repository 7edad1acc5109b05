// Package memdb provides the in-memory counterpart of the postgres
// transactional unit. Memory stores apply mutations immediately; the runner's
// job is to scope row leases so try-locks acquired inside the unit release
// when the unit completes, mirroring FOR UPDATE lock release on commit.
package memdb

import (
	"context"

	platformtx "giftvault/pkg/platform/tx"
)

// DB satisfies the same WithinTx contract as platform/postgres.DB.
type DB struct{}

// New returns an in-memory transactional unit runner.
func New() *DB { return &DB{} }

// WithinTx attaches a lease set to ctx and releases all registered leases
// after fn returns.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ls := &platformtx.LeaseSet{}
	defer ls.ReleaseAll()
	return fn(platformtx.WithLeaseSet(ctx, ls))
}
