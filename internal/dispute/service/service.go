// Package service implements the dispute workflow: opening freezes a pending
// escrow, resolution hands the verdict to the ledger which moves the money
// exactly once.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"giftvault/internal/dispute"
	"giftvault/internal/escrow"
	"giftvault/internal/escrow/ports"
	"giftvault/internal/events"
	derrors "giftvault/pkg/domain-errors"
	"giftvault/pkg/platform/sentinel"
)

// TxRunner runs a function inside one atomic storage unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ledger is the slice of the escrow ledger the dispute workflow drives.
type Ledger interface {
	Get(ctx context.Context, escrowID string) (*escrow.Transaction, []escrow.LedgerEntry, error)
	MarkDisputed(ctx context.Context, escrowID string, at time.Time) error
	ReleaseResolved(ctx context.Context, escrowID, idempotencyKey string) (escrow.Result, error)
	RefundResolved(ctx context.Context, escrowID, reason, idempotencyKey string) (escrow.Result, error)
}

// Service coordinates disputes against the escrow ledger.
type Service struct {
	db       TxRunner
	disputes dispute.Store
	ledger   Ledger
	pub      events.Publisher
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db TxRunner, disputes dispute.Store, ledger Ledger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if disputes == nil {
		return nil, fmt.Errorf("dispute store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:       db,
		disputes: disputes,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Arbitration deadlines measured from dispute open.
const (
	responseWindow = 48 * time.Hour
	reviewWindow   = 120 * time.Hour
)

// Open freezes a pending escrow under a new dispute. Only a party to the
// escrow may open one, and only one dispute can be open per escrow.
func (s *Service) Open(ctx context.Context, escrowID, openedBy, reason string, evidence []string) (*dispute.Dispute, error) {
	if escrowID == "" || openedBy == "" {
		return nil, derrors.New(derrors.CodeValidation, "escrow id and opener are required")
	}
	if reason == "" {
		return nil, derrors.New(derrors.CodeValidation, "dispute reason is required")
	}

	esc, _, err := s.ledger.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if openedBy != esc.SenderID && openedBy != esc.RecipientID {
		return nil, derrors.New(derrors.CodeValidation, "only a party to the escrow may open a dispute")
	}
	if evidence == nil {
		evidence = []string{}
	}

	now := s.now()
	d := &dispute.Dispute{
		ID:               uuid.NewString(),
		EscrowID:         escrowID,
		OpenedBy:         openedBy,
		Reason:           reason,
		Evidence:         evidence,
		Status:           dispute.StatusOpen,
		ResponseDeadline: now.Add(responseWindow),
		ReviewDeadline:   now.Add(reviewWindow),
		OpenedAt:         now,
	}
	err = s.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.disputes.Create(ctx, d); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return derrors.New(derrors.CodeConflict, "a dispute is already open for this escrow")
			}
			return derrors.Wrap(derrors.CodeInternal, "create dispute", err)
		}
		return s.ledger.MarkDisputed(ctx, escrowID, now)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeEscrowDisputed,
		EscrowID:   escrowID,
		UserID:     openedBy,
		Payload:    map[string]string{"disputeId": d.ID, "reason": reason},
		OccurredAt: now,
	})
	s.notify(ctx, otherParty(esc, openedBy), events.TypeEscrowDisputed, map[string]string{"disputeId": d.ID})
	return d, nil
}

// Resolve records the arbitration verdict and applies it to the ledger. The
// ledger call carries the caller's idempotency key, so a retried resolution
// never moves money twice.
func (s *Service) Resolve(ctx context.Context, disputeID string, resolution dispute.Resolution, resolvedBy, idempotencyKey string) (*dispute.Dispute, escrow.Result, error) {
	if disputeID == "" || resolvedBy == "" {
		return nil, escrow.Result{}, derrors.New(derrors.CodeValidation, "dispute id and resolver are required")
	}
	if resolution != dispute.ResolutionRelease && resolution != dispute.ResolutionRefund {
		return nil, escrow.Result{}, derrors.New(derrors.CodeValidation, "resolution must be release or refund")
	}

	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, escrow.Result{}, derrors.New(derrors.CodeNotFound, "dispute not found")
		}
		return nil, escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "get dispute", err)
	}
	if d.Status != dispute.StatusOpen {
		return nil, escrow.Result{}, derrors.New(derrors.CodeInvalidState, "dispute is already resolved")
	}

	var res escrow.Result
	if resolution == dispute.ResolutionRelease {
		res, err = s.ledger.ReleaseResolved(ctx, d.EscrowID, idempotencyKey)
	} else {
		res, err = s.ledger.RefundResolved(ctx, d.EscrowID, "dispute resolved for sender", idempotencyKey)
	}
	if err != nil {
		return nil, escrow.Result{}, err
	}

	now := s.now()
	err = s.db.WithinTx(ctx, func(ctx context.Context) error {
		return s.disputes.Resolve(ctx, disputeID, resolution, resolvedBy, now)
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrInvalidState):
		// A concurrent resolver won between our status check and the CAS. The
		// ledger result is still authoritative.
		s.logger.WarnContext(ctx, "dispute resolved concurrently", "dispute_id", disputeID)
	default:
		return nil, escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "resolve dispute", err)
	}

	d, err = s.disputes.Get(ctx, disputeID)
	if err != nil {
		return nil, escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "get dispute", err)
	}
	return d, res, nil
}

// Get returns a dispute by ID.
func (s *Service) Get(ctx context.Context, disputeID string) (*dispute.Dispute, error) {
	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "dispute not found")
		}
		return nil, derrors.Wrap(derrors.CodeInternal, "get dispute", err)
	}
	return d, nil
}

func otherParty(esc *escrow.Transaction, openedBy string) string {
	if openedBy == esc.SenderID {
		return esc.RecipientID
	}
	return esc.SenderID
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"type", event.Type,
			"escrow_id", event.EscrowID,
			"error", err.Error(),
		)
	}
}

func (s *Service) notify(ctx context.Context, userID, event string, payload map[string]string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, event, payload); err != nil {
		s.logger.WarnContext(ctx, "notification dispatch failed",
			"user_id", userID,
			"event", event,
			"error", err.Error(),
		)
	}
}
