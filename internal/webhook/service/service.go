// Package service ingests provider callbacks and translates them into ledger
// operations. The provider transaction ID doubles as the ledger idempotency
// key, so a redelivered capture can never release twice.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"giftvault/internal/escrow"
	"giftvault/internal/webhook"
	derrors "giftvault/pkg/domain-errors"
	"giftvault/pkg/platform/sentinel"
)

// Ledger is the slice of the escrow ledger webhook dispatch drives.
type Ledger interface {
	Release(ctx context.Context, escrowID, idempotencyKey, verifiedBy string) (escrow.Result, error)
	Refund(ctx context.Context, escrowID, reason, idempotencyKey string) (escrow.Result, error)
}

// Service ingests provider deliveries.
type Service struct {
	events webhook.Store
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(events webhook.Store, ledger Ledger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, fmt.Errorf("webhook store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{events: events, ledger: ledger, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// IngestInput is one provider delivery.
type IngestInput struct {
	Provider     string
	ProviderTxID string
	EventType    string
	EscrowID     string
	Payload      json.RawMessage
}

// Receipt is the ingest outcome returned to the provider.
type Receipt struct {
	Duplicate bool           `json:"duplicate"`
	Action    string         `json:"action,omitempty"`
	Result    *escrow.Result `json:"result,omitempty"`
}

// Ingest dedups the delivery, dispatches the matching ledger operation, then
// records the delivery. Recording happens last so a transient ledger failure
// leaves the delivery unrecorded and the provider's retry does the work.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (Receipt, error) {
	if in.Provider == "" || in.ProviderTxID == "" || in.EventType == "" {
		return Receipt{}, derrors.New(derrors.CodeValidation, "provider, provider tx id and event type are required")
	}

	seen, err := s.events.Exists(ctx, in.ProviderTxID, in.EventType)
	if err != nil {
		return Receipt{}, derrors.Wrap(derrors.CodeInternal, "check webhook delivery", err)
	}
	if seen {
		return Receipt{Duplicate: true}, nil
	}

	receipt, dispatchErr := s.dispatch(ctx, in)
	if dispatchErr != nil &&
		(derrors.Retryable(dispatchErr) || derrors.CodeOf(dispatchErr) == derrors.CodeInternal) {
		return Receipt{}, dispatchErr
	}
	if dispatchErr != nil {
		// Terminal domain outcome: redelivery cannot change it. Record and
		// ack so the provider stops retrying.
		s.logger.WarnContext(ctx, "webhook dispatch rejected",
			"provider", in.Provider,
			"provider_tx_id", in.ProviderTxID,
			"event_type", in.EventType,
			"error", dispatchErr.Error(),
		)
		receipt = Receipt{Action: "rejected"}
	}

	record := &webhook.Event{
		ID:           uuid.NewString(),
		Provider:     in.Provider,
		ProviderTxID: in.ProviderTxID,
		EventType:    in.EventType,
		EscrowID:     in.EscrowID,
		Payload:      in.Payload,
		ReceivedAt:   s.now(),
	}
	if err := s.events.Insert(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent identical delivery recorded first. The ledger's
			// idempotency key already collapsed the two dispatches.
			receipt.Duplicate = true
			return receipt, nil
		}
		return Receipt{}, derrors.Wrap(derrors.CodeInternal, "record webhook delivery", err)
	}
	return receipt, nil
}

func (s *Service) dispatch(ctx context.Context, in IngestInput) (Receipt, error) {
	key := "wh:" + in.ProviderTxID
	switch in.EventType {
	case webhook.EventPaymentCaptured:
		if in.EscrowID == "" {
			return Receipt{}, derrors.New(derrors.CodeValidation, "escrow id is required for capture events")
		}
		res, err := s.ledger.Release(ctx, in.EscrowID, key, "")
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Action: "released", Result: &res}, nil
	case webhook.EventPaymentFailed, webhook.EventPaymentReversed:
		if in.EscrowID == "" {
			return Receipt{}, derrors.New(derrors.CodeValidation, "escrow id is required for failure events")
		}
		res, err := s.ledger.Refund(ctx, in.EscrowID, "provider reported "+in.EventType, key)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Action: "refunded", Result: &res}, nil
	default:
		return Receipt{Action: "recorded"}, nil
	}
}
