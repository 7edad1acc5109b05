// Package postgres owns the connection pool and the transactional unit used
// by every ledger operation. Wallet mutation, ledger append, and status
// transition for one operation always run inside a single WithinTx call so
// partial application cannot occur.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	platformtx "giftvault/pkg/platform/tx"
)

// DB wraps a pgx pool with the transactional-unit helper.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects a pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// WithinTx runs fn inside a single transaction. The transaction handle rides
// the context (pkg/platform/tx) so stores join it transparently. Any error
// from fn rolls the whole unit back.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(platformtx.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Querier is the subset of pgx operations stores need, satisfied by both the
// pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier resolves the active handle: the context transaction when inside a
// unit, otherwise the pool.
func (d *DB) Querier(ctx context.Context) Querier {
	if t, ok := platformtx.From(ctx); ok {
		return t
	}
	return d.Pool
}

// Health checks pool connectivity.
func (d *DB) Health(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close releases the pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// Migrate applies file-based migrations against the configured database.
// ErrNoChange is not an error: an up-to-date schema is the normal case.
func Migrate(databaseURL, dir string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
