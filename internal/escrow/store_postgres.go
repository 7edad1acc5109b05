package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"giftvault/internal/platform/postgres"
	"giftvault/pkg/platform/sentinel"
)

// lockNotAvailable is the SQLSTATE raised by FOR UPDATE NOWAIT when another
// transaction holds the row lock.
const lockNotAvailable = "55P03"

// PostgresStore persists escrows and ledger entries in PostgreSQL.
type PostgresStore struct {
	db *postgres.DB
}

// NewPostgres constructs a PostgreSQL-backed escrow store.
func NewPostgres(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const escrowColumns = `id, sender_id, recipient_id, subject_id, amount, currency, status,
	release_condition, transfer_delay_seconds, expires_at,
	tier_name, commission_total, commission_giver, commission_receiver, giver_pays, receiver_gets,
	extension, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, txn *Transaction) error {
	q := s.db.Querier(ctx)
	ext, err := json.Marshal(txn.Extension)
	if err != nil {
		return fmt.Errorf("encode extension: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO escrow_transactions (`+escrowColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		txn.ID, txn.SenderID, txn.RecipientID, txn.SubjectID, txn.Amount, txn.Currency, txn.Status,
		txn.ReleaseCondition, int64(txn.TransferDelay/time.Second), txn.ExpiresAt,
		txn.Commission.TierName, txn.Commission.Total, txn.Commission.Giver, txn.Commission.Receiver,
		txn.Commission.GiverPays, txn.Commission.ReceiverGets,
		ext, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create escrow: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.get(ctx, id, false)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, id string) (*Transaction, error) {
	return s.get(ctx, id, true)
}

func (s *PostgresStore) get(ctx context.Context, id string, forUpdate bool) (*Transaction, error) {
	q := s.db.Querier(ctx)
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE NOWAIT`
	}

	var (
		txn          Transaction
		delaySeconds int64
		ext          []byte
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&txn.ID, &txn.SenderID, &txn.RecipientID, &txn.SubjectID, &txn.Amount, &txn.Currency, &txn.Status,
		&txn.ReleaseCondition, &delaySeconds, &txn.ExpiresAt,
		&txn.Commission.TierName, &txn.Commission.Total, &txn.Commission.Giver, &txn.Commission.Receiver,
		&txn.Commission.GiverPays, &txn.Commission.ReceiverGets,
		&ext, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			return nil, sentinel.ErrLockContention
		}
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	txn.TransferDelay = time.Duration(delaySeconds) * time.Second
	if len(ext) > 0 {
		if err := json.Unmarshal(ext, &txn.Extension); err != nil {
			return nil, fmt.Errorf("decode extension: %w", err)
		}
	}
	return &txn, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, from, to Status, at time.Time) error {
	q := s.db.Querier(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE escrow_transactions
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, at,
	)
	if err != nil {
		return fmt.Errorf("set escrow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	q := s.db.Querier(ctx)
	rows, err := q.Query(ctx, `
		SELECT id FROM escrow_transactions
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3`,
		StatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired escrows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired escrow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) AppendEntry(ctx context.Context, entry *LedgerEntry) error {
	q := s.db.Querier(ctx)
	var escrowID any
	if entry.EscrowID != "" {
		escrowID = entry.EscrowID
	}
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_entries (id, escrow_id, kind, from_user_id, to_user_id, amount, currency, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, escrowID, entry.Kind, entry.FromUserID, entry.ToUserID, entry.Amount, entry.Currency, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) EntriesByEscrow(ctx context.Context, escrowID string) ([]LedgerEntry, error) {
	q := s.db.Querier(ctx)
	rows, err := q.Query(ctx, `
		SELECT id, escrow_id::text, kind, from_user_id, to_user_id, amount, currency, recorded_at
		FROM ledger_entries
		WHERE escrow_id = $1
		ORDER BY recorded_at ASC, id ASC`,
		escrowID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.EscrowID, &e.Kind, &e.FromUserID, &e.ToUserID, &e.Amount, &e.Currency, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*InMemoryStore)(nil)
