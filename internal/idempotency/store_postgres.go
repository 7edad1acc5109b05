package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"giftvault/internal/platform/postgres"
	"giftvault/pkg/platform/sentinel"
)

// PostgresStore backs the idempotency cache with the idempotency_records
// table. Used when no Redis is configured; expired rows are removed by the
// purge sweep.
type PostgresStore struct {
	db  *postgres.DB
	ttl time.Duration
}

func NewPostgres(db *postgres.DB, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, ttl: ttl}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	q := s.db.Querier(ctx)
	var rec Record
	err := q.QueryRow(ctx, `
		SELECT key, escrow_id, operation, result, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&rec.Key, &rec.EscrowID, &rec.Operation, &rec.Result, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	return &rec, nil
}

// Put relies on ON CONFLICT DO NOTHING for first-writer-wins; a losing writer
// reads back and returns the winner's record.
func (s *PostgresStore) Put(ctx context.Context, rec Record) (*Record, error) {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
	q := s.db.Querier(ctx)
	tag, err := q.Exec(ctx, `
		INSERT INTO idempotency_records (key, escrow_id, operation, result, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.EscrowID, rec.Operation, []byte(rec.Result), rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("idempotency put: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return &rec, nil
	}
	winner, err := s.Get(ctx, rec.Key)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The conflicting row is past its expiry; replace it.
		if _, err := q.Exec(ctx, `
			UPDATE idempotency_records
			SET escrow_id = $2, operation = $3, result = $4, created_at = $5, expires_at = $6
			WHERE key = $1 AND expires_at <= now()`,
			rec.Key, rec.EscrowID, rec.Operation, []byte(rec.Result), rec.CreatedAt, rec.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("idempotency put: %w", err)
		}
		return s.Get(ctx, rec.Key)
	}
	return winner, err
}

// Sweep deletes expired records and returns how many were removed.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	q := s.db.Querier(ctx)
	tag, err := q.Exec(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("idempotency sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PostgresStore)(nil)
