package webhook

import (
	"context"
	"fmt"

	"giftvault/internal/platform/postgres"
	"giftvault/pkg/platform/sentinel"
)

// PostgresStore records deliveries in the webhook_events table; the unique
// index on (provider_tx_id, event_type) is the dedup authority.
type PostgresStore struct {
	db *postgres.DB
}

func NewPostgres(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, e *Event) error {
	q := s.db.Querier(ctx)
	var escrowID any
	if e.EscrowID != "" {
		escrowID = e.EscrowID
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, provider_tx_id, event_type, escrow_id, payload, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (provider_tx_id, event_type) DO NOTHING`,
		e.ID, e.Provider, e.ProviderTxID, e.EventType, escrowID, []byte(e.Payload), e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, providerTxID, eventType string) (bool, error) {
	q := s.db.Querier(ctx)
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM webhook_events WHERE provider_tx_id = $1 AND event_type = $2
		)`,
		providerTxID, eventType,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return exists, nil
}

var _ Store = (*PostgresStore)(nil)
