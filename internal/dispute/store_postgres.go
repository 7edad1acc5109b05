package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"giftvault/internal/platform/postgres"
	"giftvault/pkg/platform/sentinel"
)

// PostgresStore persists disputes in PostgreSQL. The one-open-dispute-per-
// escrow rule is enforced by a partial unique index on (escrow_id) WHERE
// status = 'open'.
type PostgresStore struct {
	db *postgres.DB
}

func NewPostgres(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const disputeColumns = `id, escrow_id, opened_by, reason, evidence, status, resolution, resolved_by, response_deadline, review_deadline, opened_at, resolved_at`

func (s *PostgresStore) Create(ctx context.Context, d *Dispute) error {
	q := s.db.Querier(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO disputes (id, escrow_id, opened_by, reason, evidence, status, response_deadline, review_deadline, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.EscrowID, d.OpenedBy, d.Reason, d.Evidence, d.Status, d.ResponseDeadline, d.ReviewDeadline, d.OpenedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create dispute: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Dispute, error) {
	q := s.db.Querier(ctx)
	return scanDispute(q.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
}

func (s *PostgresStore) GetOpenByEscrow(ctx context.Context, escrowID string) (*Dispute, error) {
	q := s.db.Querier(ctx)
	return scanDispute(q.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE escrow_id = $1 AND status = $2`,
		escrowID, StatusOpen,
	))
}

func scanDispute(row pgx.Row) (*Dispute, error) {
	var (
		d          Dispute
		resolution *string
		resolvedBy *string
	)
	err := row.Scan(&d.ID, &d.EscrowID, &d.OpenedBy, &d.Reason, &d.Evidence, &d.Status, &resolution, &resolvedBy, &d.ResponseDeadline, &d.ReviewDeadline, &d.OpenedAt, &d.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get dispute: %w", err)
	}
	if resolution != nil {
		d.Resolution = Resolution(*resolution)
	}
	if resolvedBy != nil {
		d.ResolvedBy = *resolvedBy
	}
	return &d, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, id string, resolution Resolution, resolvedBy string, at time.Time) error {
	q := s.db.Querier(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND status = $6`,
		id, StatusResolved, resolution, resolvedBy, at, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM disputes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("resolve dispute: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
