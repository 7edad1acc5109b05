package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"giftvault/internal/platform/postgres"
	"giftvault/pkg/platform/sentinel"
)

// PostgresStore persists wallets in PostgreSQL.
type PostgresStore struct {
	db *postgres.DB
}

// NewPostgres constructs a PostgreSQL-backed wallet store.
func NewPostgres(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Wallet, error) {
	q := s.db.Querier(ctx)
	var w Wallet
	err := q.QueryRow(ctx,
		`SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1`,
		userID,
	).Scan(&w.UserID, &w.Balance, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) Credit(ctx context.Context, userID string, amount int64) error {
	q := s.db.Querier(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO wallets (user_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) Debit(ctx context.Context, userID string, amount int64) error {
	q := s.db.Querier(ctx)
	// Conditional update keeps the non-negative invariant inside the store;
	// zero rows means either no wallet or not enough balance.
	tag, err := q.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return sentinel.ErrInsufficientBalance
}
