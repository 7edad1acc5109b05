//go:build integration

package escrow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"giftvault/internal/commission"
	"giftvault/internal/escrow"
	"giftvault/internal/proofgate"
	"giftvault/pkg/platform/sentinel"
	"giftvault/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *escrow.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = escrow.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.Truncate(context.Background(), "ledger_entries", "disputes", "escrow_transactions", "wallets")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTransaction() *escrow.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &escrow.Transaction{
		ID:               uuid.NewString(),
		SenderID:         "alice",
		RecipientID:      "bob",
		SubjectID:        "order-1",
		Amount:           5000,
		Currency:         "USD",
		Status:           escrow.StatusPending,
		ReleaseCondition: proofgate.RequirementOptional,
		TransferDelay:    24 * time.Hour,
		ExpiresAt:        now.Add(168 * time.Hour),
		Commission: commission.Breakdown{
			TierName: "premium", Total: 600, Giver: 480, Receiver: 120,
			GiverPays: 5000, ReceiverGets: 4400,
		},
		Extension: escrow.Extension{Version: 1, GiftMessage: "enjoy"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	txn := s.newTransaction()

	s.Require().NoError(s.store.Create(ctx, txn))

	got, err := s.store.Get(ctx, txn.ID)
	s.Require().NoError(err)
	s.Equal(txn.SenderID, got.SenderID)
	s.Equal(txn.Amount, got.Amount)
	s.Equal(txn.Commission, got.Commission)
	s.Equal(txn.TransferDelay, got.TransferDelay)
	s.Equal(txn.Extension, got.Extension)
	s.True(txn.ExpiresAt.Equal(got.ExpiresAt))

	s.ErrorIs(s.store.Create(ctx, txn), sentinel.ErrConflict)

	_, err = s.store.Get(ctx, uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSetStatusCompareAndSet() {
	ctx := context.Background()
	txn := s.newTransaction()
	s.Require().NoError(s.store.Create(ctx, txn))

	now := time.Now()
	s.Require().NoError(s.store.SetStatus(ctx, txn.ID, escrow.StatusPending, escrow.StatusReleased, now))

	err := s.store.SetStatus(ctx, txn.ID, escrow.StatusPending, escrow.StatusRefunded, now)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

// TestLeaseContention verifies FOR UPDATE NOWAIT: a second transaction asking
// for a held row lease fails immediately rather than queueing.
func (s *PostgresStoreSuite) TestLeaseContention() {
	ctx := context.Background()
	txn := s.newTransaction()
	s.Require().NoError(s.store.Create(ctx, txn))

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.store.GetForUpdate(ctx, txn.ID); err != nil {
				return err
			}
			close(acquired)
			<-release
			return nil
		})
	}()

	<-acquired
	err := s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.store.GetForUpdate(ctx, txn.ID)
		return err
	})
	s.ErrorIs(err, sentinel.ErrLockContention)

	close(release)
	s.Require().NoError(<-done)

	// Lease released on commit; the row is free again.
	err = s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.store.GetForUpdate(ctx, txn.ID)
		return err
	})
	s.Require().NoError(err)
}

// TestConcurrentLeases hammers one row; at most one holder at a time.
func (s *PostgresStoreSuite) TestConcurrentLeases() {
	ctx := context.Background()
	txn := s.newTransaction()
	s.Require().NoError(s.store.Create(ctx, txn))

	const goroutines = 20
	var wg sync.WaitGroup
	var holders atomic.Int32
	var maxHolders atomic.Int32
	var contended atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
				_, err := s.store.GetForUpdate(ctx, txn.ID)
				if err != nil {
					return err
				}
				n := holders.Add(1)
				if n > maxHolders.Load() {
					maxHolders.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				holders.Add(-1)
				return nil
			})
			if err != nil {
				contended.Add(1)
			}
		}()
	}
	wg.Wait()

	s.LessOrEqual(maxHolders.Load(), int32(1), "lease must be exclusive")
	s.Positive(contended.Load(), "NOWAIT must reject waiters")
}

func (s *PostgresStoreSuite) TestListExpired() {
	ctx := context.Background()
	now := time.Now().UTC()

	past := s.newTransaction()
	past.ExpiresAt = now.Add(-time.Hour)
	future := s.newTransaction()
	future.ExpiresAt = now.Add(time.Hour)
	released := s.newTransaction()
	released.ExpiresAt = now.Add(-2 * time.Hour)

	for _, txn := range []*escrow.Transaction{past, future, released} {
		s.Require().NoError(s.store.Create(ctx, txn))
	}
	s.Require().NoError(s.store.SetStatus(ctx, released.ID, escrow.StatusPending, escrow.StatusReleased, now))

	ids, err := s.store.ListExpired(ctx, now, 10)
	s.Require().NoError(err)
	s.Equal([]string{past.ID}, ids)
}

func (s *PostgresStoreSuite) TestLedgerEntries() {
	ctx := context.Background()
	txn := s.newTransaction()
	s.Require().NoError(s.store.Create(ctx, txn))

	now := time.Now().UTC().Truncate(time.Microsecond)
	lock := &escrow.LedgerEntry{
		ID: uuid.NewString(), EscrowID: txn.ID, Kind: escrow.EntryLock,
		FromUserID: "alice", Amount: 5000, Currency: "USD", RecordedAt: now,
	}
	release := &escrow.LedgerEntry{
		ID: uuid.NewString(), EscrowID: txn.ID, Kind: escrow.EntryRelease,
		ToUserID: "bob", Amount: 4400, Currency: "USD", RecordedAt: now.Add(time.Second),
	}
	direct := &escrow.LedgerEntry{
		ID: uuid.NewString(), Kind: escrow.EntryDirect,
		FromUserID: "carol", ToUserID: "dave", Amount: 950, Currency: "USD", RecordedAt: now,
	}
	for _, e := range []*escrow.LedgerEntry{lock, release, direct} {
		s.Require().NoError(s.store.AppendEntry(ctx, e))
	}

	entries, err := s.store.EntriesByEscrow(ctx, txn.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(escrow.EntryLock, entries[0].Kind)
	s.Equal(escrow.EntryRelease, entries[1].Kind)
	s.Equal(txn.ID, entries[0].EscrowID)
}
