// Package service orchestrates the escrow ledger: it holds funds, applies the
// commission split, gates release behind the proof policy, and guarantees that
// money moves exactly once even under retries and concurrent callers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"giftvault/internal/commission"
	"giftvault/internal/escrow"
	"giftvault/internal/escrow/metrics"
	"giftvault/internal/escrow/ports"
	"giftvault/internal/events"
	"giftvault/internal/idempotency"
	"giftvault/internal/proofgate"
	"giftvault/internal/wallet"
	derrors "giftvault/pkg/domain-errors"
	"giftvault/pkg/platform/sentinel"
)

// TxRunner runs a function inside one atomic storage unit. Wallet mutation,
// ledger append, and status transition for a single operation always share
// one unit; a failure anywhere rolls the whole unit back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the escrow ledger. It never retries internally; retry decisions
// belong to the caller.
type Service struct {
	db       TxRunner
	escrows  escrow.Store
	wallets  wallet.Store
	idem     idempotency.Store
	comm     *commission.Table
	proof    *proofgate.Table
	verifier ports.ProofVerifier
	notifier ports.Notifier
	pub      events.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	currency  string
	escrowTTL time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithVerifier wires the external proof-verification collaborator.
func WithVerifier(v ports.ProofVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

// WithNotifier wires the fire-and-forget notification collaborator.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher wires the post-commit event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithMetrics wires the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCurrency overrides the default currency code.
func WithCurrency(code string) Option {
	return func(s *Service) { s.currency = code }
}

// WithEscrowTTL overrides how long a pending escrow lives before the expiry
// sweep refunds it.
func WithEscrowTTL(ttl time.Duration) Option {
	return func(s *Service) { s.escrowTTL = ttl }
}

// WithClock overrides time.Now. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the ledger service.
func New(
	db TxRunner,
	escrows escrow.Store,
	wallets wallet.Store,
	idem idempotency.Store,
	comm *commission.Table,
	proof *proofgate.Table,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if escrows == nil {
		return nil, fmt.Errorf("escrow store is required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet store is required")
	}
	if idem == nil {
		return nil, fmt.Errorf("idempotency store is required")
	}
	if comm == nil {
		return nil, fmt.Errorf("commission table is required")
	}
	if proof == nil {
		return nil, fmt.Errorf("proof gate table is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:        db,
		escrows:   escrows,
		wallets:   wallets,
		idem:      idem,
		comm:      comm,
		proof:     proof,
		logger:    logger,
		tracer:    otel.Tracer("giftvault/escrow"),
		currency:  "USD",
		escrowTTL: 168 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateInput carries escrow creation parameters.
type CreateInput struct {
	SenderID      string
	RecipientID   string
	SubjectID     string
	Amount        int64
	Currency      string
	RecipientType commission.AccountType
	RequestsProof bool
	Extension     escrow.Extension
}

// Create funds a payment. Depending on the proof gate's classification the
// funds either move directly (no pending row) or are locked in a new pending
// escrow; either way the sender debit commits atomically with the records
// that justify it.
func (s *Service) Create(ctx context.Context, in CreateInput) (escrow.CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.create")
	defer span.End()
	start := s.now()

	if in.SenderID == "" || in.RecipientID == "" {
		return escrow.CreateResult{}, derrors.New(derrors.CodeValidation, "sender and recipient are required")
	}
	if in.SenderID == in.RecipientID {
		return escrow.CreateResult{}, derrors.New(derrors.CodeValidation, "sender and recipient must differ")
	}
	if in.Amount <= 0 {
		return escrow.CreateResult{}, derrors.New(derrors.CodeValidation, "amount must be positive")
	}
	if in.RecipientType == "" {
		in.RecipientType = commission.AccountStandard
	}
	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}

	breakdown, err := s.comm.Compute(in.Amount, in.RecipientType)
	if err != nil {
		return escrow.CreateResult{}, err
	}
	decision, err := s.proof.Classify(in.Amount)
	if err != nil {
		return escrow.CreateResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("escrow.amount", in.Amount),
		attribute.String("escrow.requirement", string(decision.Requirement)),
	)

	holdInEscrow := decision.Requirement == proofgate.RequirementRequired ||
		(decision.Requirement == proofgate.RequirementOptional && in.RequestsProof)

	var res escrow.CreateResult
	if holdInEscrow {
		res, err = s.createPending(ctx, in, currency, breakdown, decision)
	} else {
		res, err = s.createDirect(ctx, in, currency, breakdown, decision)
	}
	s.metrics.RecordOperation("create", outcomeOf(err), time.Since(start))
	return res, err
}

func (s *Service) createDirect(ctx context.Context, in CreateInput, currency string, b commission.Breakdown, d proofgate.Decision) (escrow.CreateResult, error) {
	now := s.now()
	entryID := uuid.NewString()

	err := s.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.debitSender(ctx, in.SenderID, b.GiverPays); err != nil {
			return err
		}
		if err := s.wallets.Credit(ctx, in.RecipientID, b.ReceiverGets); err != nil {
			return derrors.Wrap(derrors.CodeInternal, "credit recipient", err)
		}
		entry := &escrow.LedgerEntry{
			ID:         entryID,
			Kind:       escrow.EntryDirect,
			FromUserID: in.SenderID,
			ToUserID:   in.RecipientID,
			Amount:     b.ReceiverGets,
			Currency:   currency,
			RecordedAt: now,
		}
		if err := s.escrows.AppendEntry(ctx, entry); err != nil {
			return derrors.Wrap(derrors.CodeInternal, "append ledger entry", err)
		}
		return s.creditPlatform(ctx, "", in.SenderID, b.Total, currency, now)
	})
	if err != nil {
		return escrow.CreateResult{}, err
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeDirectPayment,
		UserID:     in.RecipientID,
		Payload:    map[string]string{"transactionId": entryID, "amount": fmt.Sprint(b.ReceiverGets)},
		OccurredAt: now,
	})
	s.notify(ctx, in.RecipientID, events.TypeDirectPayment, map[string]string{"transactionId": entryID})

	return escrow.CreateResult{
		Requirement:   d.Requirement,
		Direct:        true,
		TransactionID: entryID,
		GiverPays:     b.GiverPays,
		ReceiverGets:  b.ReceiverGets,
	}, nil
}

func (s *Service) createPending(ctx context.Context, in CreateInput, currency string, b commission.Breakdown, d proofgate.Decision) (escrow.CreateResult, error) {
	now := s.now()
	txn := &escrow.Transaction{
		ID:               uuid.NewString(),
		SenderID:         in.SenderID,
		RecipientID:      in.RecipientID,
		SubjectID:        in.SubjectID,
		Amount:           in.Amount,
		Currency:         currency,
		Status:           escrow.StatusPending,
		ReleaseCondition: d.Requirement,
		TransferDelay:    d.TransferDelay,
		ExpiresAt:        now.Add(s.escrowTTL),
		Commission:       b,
		Extension:        in.Extension,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.debitSender(ctx, in.SenderID, b.GiverPays); err != nil {
			return err
		}
		if err := s.escrows.Create(ctx, txn); err != nil {
			return derrors.Wrap(derrors.CodeInternal, "create escrow", err)
		}
		entry := &escrow.LedgerEntry{
			ID:         uuid.NewString(),
			EscrowID:   txn.ID,
			Kind:       escrow.EntryLock,
			FromUserID: in.SenderID,
			Amount:     b.GiverPays,
			Currency:   currency,
			RecordedAt: now,
		}
		if err := s.escrows.AppendEntry(ctx, entry); err != nil {
			return derrors.Wrap(derrors.CodeInternal, "append ledger entry", err)
		}
		return nil
	})
	if err != nil {
		return escrow.CreateResult{}, err
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeEscrowCreated,
		EscrowID:   txn.ID,
		UserID:     in.RecipientID,
		Payload:    map[string]string{"amount": fmt.Sprint(in.Amount), "requirement": string(d.Requirement)},
		OccurredAt: now,
	})
	s.notify(ctx, in.RecipientID, events.TypeEscrowCreated, map[string]string{"escrowId": txn.ID})

	return escrow.CreateResult{
		EscrowID:     txn.ID,
		Requirement:  d.Requirement,
		GiverPays:    b.GiverPays,
		ReceiverGets: b.ReceiverGets,
	}, nil
}

// Release credits the recipient at most once. The idempotency cache answers
// retries; the non-blocking row lease serializes concurrent attempts; the
// status re-check under the lease is the final safety net.
func (s *Service) Release(ctx context.Context, escrowID, idempotencyKey, verifiedBy string) (escrow.Result, error) {
	return s.release(ctx, escrowID, idempotencyKey, verifiedBy, false)
}

// ReleaseResolved releases a disputed escrow on behalf of dispute
// resolution. Only the dispute workflow calls this.
func (s *Service) ReleaseResolved(ctx context.Context, escrowID, idempotencyKey string) (escrow.Result, error) {
	return s.release(ctx, escrowID, idempotencyKey, "arbitration", true)
}

func (s *Service) release(ctx context.Context, escrowID, idempotencyKey, verifiedBy string, fromDisputed bool) (escrow.Result, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.release")
	defer span.End()
	start := s.now()

	res, err := s.terminalize(ctx, terminalizeRequest{
		escrowID:       escrowID,
		idempotencyKey: idempotencyKey,
		operation:      idempotency.OperationRelease,
		fromDisputed:   fromDisputed,
		verifiedBy:     verifiedBy,
	})
	s.metrics.RecordOperation("release", outcomeOf(err), time.Since(start))
	return res, err
}

// Refund returns the held funds to the sender. Mirrors Release, crediting the
// sender with everything they paid in.
func (s *Service) Refund(ctx context.Context, escrowID, reason, idempotencyKey string) (escrow.Result, error) {
	return s.refund(ctx, escrowID, reason, idempotencyKey, false)
}

// RefundResolved refunds a disputed escrow on behalf of dispute resolution.
func (s *Service) RefundResolved(ctx context.Context, escrowID, reason, idempotencyKey string) (escrow.Result, error) {
	return s.refund(ctx, escrowID, reason, idempotencyKey, true)
}

func (s *Service) refund(ctx context.Context, escrowID, reason, idempotencyKey string, fromDisputed bool) (escrow.Result, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.refund")
	defer span.End()
	start := s.now()

	if reason == "" {
		return escrow.Result{}, derrors.New(derrors.CodeValidation, "refund reason is required")
	}
	res, err := s.terminalize(ctx, terminalizeRequest{
		escrowID:       escrowID,
		idempotencyKey: idempotencyKey,
		operation:      idempotency.OperationRefund,
		fromDisputed:   fromDisputed,
		reason:         reason,
	})
	s.metrics.RecordOperation("refund", outcomeOf(err), time.Since(start))
	return res, err
}

type terminalizeRequest struct {
	escrowID       string
	idempotencyKey string
	operation      idempotency.Operation
	fromDisputed   bool
	verifiedBy     string
	reason         string
}

// terminalize is the shared release/refund path implementing the at-most-once
// contract: idempotency read, lease, status re-check, atomic move, idempotency
// write, post-commit emission.
func (s *Service) terminalize(ctx context.Context, req terminalizeRequest) (escrow.Result, error) {
	op := string(req.operation)
	if req.escrowID == "" {
		return escrow.Result{}, derrors.New(derrors.CodeValidation, "escrow id is required")
	}
	// Caller-supplied keys are required for the correctness guarantee, not
	// optional: a derived default would only cover a narrow retry window.
	if req.idempotencyKey == "" {
		return escrow.Result{}, derrors.New(derrors.CodeValidation, "idempotency key is required")
	}

	if cached, err := s.idem.Get(ctx, req.idempotencyKey); err == nil {
		var res escrow.Result
		if err := json.Unmarshal(cached.Result, &res); err != nil {
			return escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "decode cached result", err)
		}
		res.Idempotent = true
		s.metrics.RecordIdempotentHit(op)
		return res, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "idempotency lookup", err)
	}

	var (
		res  escrow.Result
		evt  *events.Event
		told string
	)
	err := s.db.WithinTx(ctx, func(ctx context.Context) error {
		esc, err := s.escrows.GetForUpdate(ctx, req.escrowID)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return derrors.New(derrors.CodeNotFound, "escrow not found")
			case errors.Is(err, sentinel.ErrLockContention):
				s.metrics.RecordLockContention(op)
				return derrors.New(derrors.CodeLockContention, "a concurrent operation holds this escrow; retry with backoff")
			default:
				return derrors.Wrap(derrors.CodeInternal, "lock escrow", err)
			}
		}

		target := escrow.StatusReleased
		if req.operation == idempotency.OperationRefund {
			target = escrow.StatusRefunded
		}

		// Re-check under the lease. An escrow already in the target state
		// means a prior attempt committed but its idempotency write was
		// lost; reconstruct the equivalent success result.
		if esc.Status == target {
			prior, err := s.priorResult(ctx, esc, target)
			if err != nil {
				return err
			}
			res = prior
			return nil
		}

		from := escrow.StatusPending
		if req.fromDisputed {
			from = escrow.StatusDisputed
		}
		if esc.Status != from {
			return derrors.New(derrors.CodeInvalidState,
				fmt.Sprintf("escrow is %s, cannot %s", esc.Status, op))
		}
		now := s.now()
		if !req.fromDisputed && req.operation == idempotency.OperationRelease && now.After(esc.ExpiresAt) {
			// Left pending on purpose: the expiry sweep owns this transition.
			return derrors.New(derrors.CodeExpired, "escrow has expired")
		}

		if req.operation == idempotency.OperationRelease && !req.fromDisputed &&
			esc.ReleaseCondition == proofgate.RequirementRequired && req.verifiedBy == "" {
			if err := s.checkProof(ctx, esc.ID); err != nil {
				return err
			}
		}

		entryID := uuid.NewString()
		if req.operation == idempotency.OperationRelease {
			if err := s.wallets.Credit(ctx, esc.RecipientID, esc.Commission.ReceiverGets); err != nil {
				return derrors.Wrap(derrors.CodeInternal, "credit recipient", err)
			}
			entry := &escrow.LedgerEntry{
				ID:         entryID,
				EscrowID:   esc.ID,
				Kind:       escrow.EntryRelease,
				ToUserID:   esc.RecipientID,
				Amount:     esc.Commission.ReceiverGets,
				Currency:   esc.Currency,
				RecordedAt: now,
			}
			if err := s.escrows.AppendEntry(ctx, entry); err != nil {
				return derrors.Wrap(derrors.CodeInternal, "append ledger entry", err)
			}
			if err := s.creditPlatform(ctx, esc.ID, esc.SenderID, esc.Commission.Total, esc.Currency, now); err != nil {
				return err
			}
			told = esc.RecipientID
		} else {
			if err := s.wallets.Credit(ctx, esc.SenderID, esc.Commission.GiverPays); err != nil {
				return derrors.Wrap(derrors.CodeInternal, "credit sender", err)
			}
			entry := &escrow.LedgerEntry{
				ID:         entryID,
				EscrowID:   esc.ID,
				Kind:       escrow.EntryRefund,
				ToUserID:   esc.SenderID,
				Amount:     esc.Commission.GiverPays,
				Currency:   esc.Currency,
				RecordedAt: now,
			}
			if err := s.escrows.AppendEntry(ctx, entry); err != nil {
				return derrors.Wrap(derrors.CodeInternal, "append ledger entry", err)
			}
			told = esc.SenderID
		}

		if err := s.escrows.SetStatus(ctx, esc.ID, from, target, now); err != nil {
			return derrors.Wrap(derrors.CodeInternal, "set escrow status", err)
		}

		res = escrow.Result{EscrowID: esc.ID, Status: target, TransactionID: entryID}
		evtType := events.TypeEscrowReleased
		payload := map[string]string{"transactionId": entryID}
		if req.operation == idempotency.OperationRefund {
			evtType = events.TypeEscrowRefunded
			payload["reason"] = req.reason
		}
		evt = &events.Event{Type: evtType, EscrowID: esc.ID, UserID: told, Payload: payload, OccurredAt: now}
		return nil
	})
	if err != nil {
		return escrow.Result{}, err
	}

	s.persistResult(ctx, req, res)

	if evt != nil {
		s.emit(ctx, *evt)
		s.notify(ctx, told, evt.Type, evt.Payload)
	}
	return res, nil
}

// priorResult rebuilds the success payload of an already-committed attempt
// from the ledger so a retry whose idempotency write was lost still gets a
// byte-equivalent answer.
func (s *Service) priorResult(ctx context.Context, esc *escrow.Transaction, target escrow.Status) (escrow.Result, error) {
	entries, err := s.escrows.EntriesByEscrow(ctx, esc.ID)
	if err != nil {
		return escrow.Result{}, derrors.Wrap(derrors.CodeInternal, "list ledger entries", err)
	}
	want := escrow.EntryRelease
	if target == escrow.StatusRefunded {
		want = escrow.EntryRefund
	}
	for _, e := range entries {
		if e.Kind == want {
			return escrow.Result{EscrowID: esc.ID, Status: target, TransactionID: e.ID, Idempotent: true}, nil
		}
	}
	return escrow.Result{}, derrors.New(derrors.CodeInternal, "terminal escrow has no matching ledger entry")
}

// persistResult writes the idempotency record after commit. A failure here is
// recoverable — the terminal status short-circuits the retry — so it is
// logged, not returned.
func (s *Service) persistResult(ctx context.Context, req terminalizeRequest, res escrow.Result) {
	cached := res
	cached.Idempotent = false
	raw, err := json.Marshal(cached)
	if err == nil {
		_, err = s.idem.Put(ctx, idempotency.Record{
			Key:       req.idempotencyKey,
			EscrowID:  req.escrowID,
			Operation: req.operation,
			Result:    raw,
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency record write failed",
			"escrow_id", req.escrowID,
			"operation", string(req.operation),
			"error", err.Error(),
		)
	}
}

func (s *Service) checkProof(ctx context.Context, escrowID string) error {
	if s.verifier == nil {
		return derrors.New(derrors.CodeInvalidState, "proof of completion not verified")
	}
	ok, err := s.verifier.IsVerified(ctx, escrowID)
	if err != nil {
		return derrors.Wrap(derrors.CodeInternal, "proof verification check", err)
	}
	if !ok {
		return derrors.New(derrors.CodeInvalidState, "proof of completion not verified")
	}
	return nil
}

// ExpireDue finds pending escrows past their expiry and refunds each sender
// exactly once. Rows whose lease is held by a live operation are skipped; the
// next run picks them up.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.expire_due")
	defer span.End()

	ids, err := s.escrows.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, derrors.Wrap(derrors.CodeInternal, "list expired escrows", err)
	}

	var expired int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	counts := make(chan int, len(ids))
	for _, id := range ids {
		g.Go(func() error {
			ok, err := s.expireOne(gctx, id, now)
			if err != nil {
				s.logger.ErrorContext(gctx, "expiry sweep row failed",
					"escrow_id", id,
					"error", err.Error(),
				)
				return nil
			}
			if ok {
				counts <- 1
			}
			return nil
		})
	}
	_ = g.Wait()
	close(counts)
	for range counts {
		expired++
	}
	s.metrics.RecordExpired(int(expired))
	return int(expired), nil
}

func (s *Service) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	var (
		expired bool
		evt     *events.Event
	)
	err := s.db.WithinTx(ctx, func(ctx context.Context) error {
		esc, err := s.escrows.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrLockContention) {
				s.metrics.RecordLockContention("expire")
				return nil
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		// A racing release/refund may have won between listing and locking.
		if esc.Status != escrow.StatusPending || esc.ExpiresAt.After(now) {
			return nil
		}
		if err := s.wallets.Credit(ctx, esc.SenderID, esc.Commission.GiverPays); err != nil {
			return err
		}
		entry := &escrow.LedgerEntry{
			ID:         uuid.NewString(),
			EscrowID:   esc.ID,
			Kind:       escrow.EntryRefund,
			ToUserID:   esc.SenderID,
			Amount:     esc.Commission.GiverPays,
			Currency:   esc.Currency,
			RecordedAt: now,
		}
		if err := s.escrows.AppendEntry(ctx, entry); err != nil {
			return err
		}
		if err := s.escrows.SetStatus(ctx, esc.ID, escrow.StatusPending, escrow.StatusExpired, now); err != nil {
			return err
		}
		expired = true
		evt = &events.Event{
			Type:       events.TypeEscrowExpired,
			EscrowID:   esc.ID,
			UserID:     esc.SenderID,
			Payload:    map[string]string{"refunded": fmt.Sprint(esc.Commission.GiverPays)},
			OccurredAt: now,
		}
		return nil
	})
	if err != nil || !expired {
		return false, err
	}
	s.emit(ctx, *evt)
	s.notify(ctx, evt.UserID, evt.Type, evt.Payload)
	return true, nil
}

// Get returns an escrow with its ledger entries for the audit view.
func (s *Service) Get(ctx context.Context, escrowID string) (*escrow.Transaction, []escrow.LedgerEntry, error) {
	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, derrors.New(derrors.CodeNotFound, "escrow not found")
		}
		return nil, nil, derrors.Wrap(derrors.CodeInternal, "get escrow", err)
	}
	entries, err := s.escrows.EntriesByEscrow(ctx, escrowID)
	if err != nil {
		return nil, nil, derrors.Wrap(derrors.CodeInternal, "list ledger entries", err)
	}
	return esc, entries, nil
}

// MarkDisputed transitions pending -> disputed inside the caller's unit. Only
// the dispute workflow calls this, under its own lease.
func (s *Service) MarkDisputed(ctx context.Context, escrowID string, at time.Time) error {
	err := s.escrows.SetStatus(ctx, escrowID, escrow.StatusPending, escrow.StatusDisputed, at)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrInvalidState):
		return derrors.New(derrors.CodeInvalidState, "escrow is not pending")
	case errors.Is(err, sentinel.ErrNotFound):
		return derrors.New(derrors.CodeNotFound, "escrow not found")
	default:
		return derrors.Wrap(derrors.CodeInternal, "set escrow status", err)
	}
	return nil
}

func (s *Service) debitSender(ctx context.Context, senderID string, amount int64) error {
	err := s.wallets.Debit(ctx, senderID, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrInsufficientBalance), errors.Is(err, sentinel.ErrNotFound):
		return derrors.New(derrors.CodeInsufficientBalance, "sender balance cannot cover amount")
	default:
		return derrors.Wrap(derrors.CodeInternal, "debit sender", err)
	}
}

func (s *Service) creditPlatform(ctx context.Context, escrowID, fromUserID string, total int64, currency string, now time.Time) error {
	if total <= 0 {
		return nil
	}
	if err := s.wallets.Credit(ctx, wallet.PlatformAccount, total); err != nil {
		return derrors.Wrap(derrors.CodeInternal, "credit platform", err)
	}
	entry := &escrow.LedgerEntry{
		ID:         uuid.NewString(),
		EscrowID:   escrowID,
		Kind:       escrow.EntryCommission,
		FromUserID: fromUserID,
		ToUserID:   wallet.PlatformAccount,
		Amount:     total,
		Currency:   currency,
		RecordedAt: now,
	}
	if err := s.escrows.AppendEntry(ctx, entry); err != nil {
		return derrors.Wrap(derrors.CodeInternal, "append ledger entry", err)
	}
	return nil
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

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(derrors.CodeOf(err))
}
