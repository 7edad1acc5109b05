//go:build integration

package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"giftvault/internal/wallet"
	"giftvault/pkg/platform/sentinel"
	"giftvault/pkg/testutil/containers"
)

type PostgresWalletSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *wallet.PostgresStore
}

func TestPostgresWalletSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresWalletSuite))
}

func (s *PostgresWalletSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = wallet.NewPostgres(s.postgres.DB)
}

func (s *PostgresWalletSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "wallets"))
}

func (s *PostgresWalletSuite) TestCreditCreatesAndAccumulates() {
	ctx := context.Background()

	s.Require().NoError(s.store.Credit(ctx, "alice", 100))
	s.Require().NoError(s.store.Credit(ctx, "alice", 250))

	w, err := s.store.Get(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(350), w.Balance)
}

func (s *PostgresWalletSuite) TestDebit() {
	ctx := context.Background()
	s.Require().NoError(s.store.Credit(ctx, "alice", 100))

	s.Require().NoError(s.store.Debit(ctx, "alice", 60))
	w, err := s.store.Get(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(40), w.Balance)

	s.ErrorIs(s.store.Debit(ctx, "alice", 41), sentinel.ErrInsufficientBalance)
	s.ErrorIs(s.store.Debit(ctx, "nobody", 1), sentinel.ErrNotFound)
}

// TestConcurrentDebits verifies the conditional update never lets a balance
// go negative under contention.
func (s *PostgresWalletSuite) TestConcurrentDebits() {
	ctx := context.Background()
	s.Require().NoError(s.store.Credit(ctx, "alice", 100))

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.Debit(ctx, "alice", 10)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			s.Require().True(errors.Is(err, sentinel.ErrInsufficientBalance))
		}
	}
	s.Equal(10, ok, "exactly ten 10-unit debits fit in 100")

	w, err := s.store.Get(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(0), w.Balance)
}

func (s *PostgresWalletSuite) TestDebitAndCreditInOneUnit() {
	ctx := context.Background()
	s.Require().NoError(s.store.Credit(ctx, "alice", 500))

	err := s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Debit(ctx, "alice", 200); err != nil {
			return err
		}
		return s.store.Credit(ctx, "bob", 200)
	})
	s.Require().NoError(err)

	// A failing unit rolls both legs back.
	errBoom := errors.New("boom")
	err = s.postgres.DB.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Debit(ctx, "alice", 100); err != nil {
			return err
		}
		return errBoom
	})
	s.ErrorIs(err, errBoom)

	a, err := s.store.Get(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(300), a.Balance)
	b, err := s.store.Get(ctx, "bob")
	s.Require().NoError(err)
	s.Equal(int64(200), b.Balance)
}
