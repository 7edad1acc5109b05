package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"giftvault/internal/commission"
	"giftvault/internal/escrow"
	escrowservice "giftvault/internal/escrow/service"
	"giftvault/internal/idempotency"
	"giftvault/internal/platform/memdb"
	"giftvault/internal/proofgate"
	"giftvault/internal/wallet"
	"giftvault/internal/webhook"
	derrors "giftvault/pkg/domain-errors"
)

type WebhookSuite struct {
	suite.Suite

	wallets *wallet.InMemoryStore
	ledger  *escrowservice.Service
	svc     *Service

	nowAt time.Time
}

func TestWebhookSuite(t *testing.T) {
	suite.Run(t, new(WebhookSuite))
}

func (s *WebhookSuite) SetupTest() {
	s.wallets = wallet.NewInMemoryStore()
	s.nowAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	comm, err := commission.LoadTiers(commission.DefaultTiers())
	s.Require().NoError(err)
	proof, err := proofgate.LoadRules(proofgate.DefaultRules())
	s.Require().NoError(err)

	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return s.nowAt }

	s.ledger, err = escrowservice.New(
		memdb.New(), escrow.NewInMemoryStore(), s.wallets,
		idempotency.NewInMemoryStore(idempotency.DefaultTTL),
		comm, proof, logger,
		escrowservice.WithClock(clock),
	)
	s.Require().NoError(err)

	s.svc, err = New(webhook.NewInMemoryStore(), s.ledger, logger, WithClock(clock))
	s.Require().NoError(err)
}

func (s *WebhookSuite) pendingEscrow() escrow.CreateResult {
	s.wallets.Seed("alice", 20000)
	res, err := s.ledger.Create(context.Background(), escrowservice.CreateInput{
		SenderID:      "alice",
		RecipientID:   "bob",
		Amount:        5000,
		RequestsProof: true,
	})
	s.Require().NoError(err)
	return res
}

func (s *WebhookSuite) balance(userID string) int64 {
	w, err := s.wallets.Get(context.Background(), userID)
	if err != nil {
		return 0
	}
	return w.Balance
}

func (s *WebhookSuite) TestIngest_Validation() {
	_, err := s.svc.Ingest(context.Background(), IngestInput{ProviderTxID: "tx-1", EventType: "x"})
	s.Require().Error(err)
	s.Equal(derrors.CodeValidation, derrors.CodeOf(err))
}

func (s *WebhookSuite) TestIngest_CaptureReleases() {
	ctx := context.Background()
	created := s.pendingEscrow()

	rcpt, err := s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-1",
		EventType:    webhook.EventPaymentCaptured,
		EscrowID:     created.EscrowID,
	})
	s.Require().NoError(err)

	s.False(rcpt.Duplicate)
	s.Equal("released", rcpt.Action)
	s.Require().NotNil(rcpt.Result)
	s.Equal(escrow.StatusReleased, rcpt.Result.Status)
	s.Equal(created.ReceiverGets, s.balance("bob"))
}

func (s *WebhookSuite) TestIngest_DuplicateDeliveryAckedWithoutLedgerCall() {
	ctx := context.Background()
	created := s.pendingEscrow()
	in := IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-1",
		EventType:    webhook.EventPaymentCaptured,
		EscrowID:     created.EscrowID,
	}

	_, err := s.svc.Ingest(ctx, in)
	s.Require().NoError(err)
	balanceAfter := s.balance("bob")

	rcpt, err := s.svc.Ingest(ctx, in)
	s.Require().NoError(err)
	s.True(rcpt.Duplicate)
	s.Equal(balanceAfter, s.balance("bob"), "redelivery moves no money")
}

func (s *WebhookSuite) TestIngest_FailureRefunds() {
	ctx := context.Background()
	created := s.pendingEscrow()
	senderBefore := s.balance("alice")

	rcpt, err := s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-2",
		EventType:    webhook.EventPaymentFailed,
		EscrowID:     created.EscrowID,
	})
	s.Require().NoError(err)

	s.Equal("refunded", rcpt.Action)
	s.Equal(senderBefore+created.GiverPays, s.balance("alice"))
}

func (s *WebhookSuite) TestIngest_UnknownEventRecordedOnly() {
	ctx := context.Background()

	rcpt, err := s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-3",
		EventType:    "customer.updated",
	})
	s.Require().NoError(err)
	s.Equal("recorded", rcpt.Action)

	rcpt, err = s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-3",
		EventType:    "customer.updated",
	})
	s.Require().NoError(err)
	s.True(rcpt.Duplicate)
}

func (s *WebhookSuite) TestIngest_TerminalRejectionIsAcked() {
	ctx := context.Background()
	created := s.pendingEscrow()

	_, err := s.ledger.Refund(ctx, created.EscrowID, "sender cancelled", "key-1")
	s.Require().NoError(err)

	// Capture for an already-refunded escrow cannot succeed on redelivery
	// either, so it is recorded and acked.
	rcpt, err := s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-4",
		EventType:    webhook.EventPaymentCaptured,
		EscrowID:     created.EscrowID,
	})
	s.Require().NoError(err)
	s.Equal("rejected", rcpt.Action)

	rcpt, err = s.svc.Ingest(ctx, IngestInput{
		Provider:     "stripe",
		ProviderTxID: "tx-4",
		EventType:    webhook.EventPaymentCaptured,
		EscrowID:     created.EscrowID,
	})
	s.Require().NoError(err)
	s.True(rcpt.Duplicate)
}
