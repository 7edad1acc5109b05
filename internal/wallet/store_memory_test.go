package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"giftvault/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("credit creates wallet", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Credit(ctx, "u1", 500))
		w, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, int64(500), w.Balance)
	})

	t.Run("debit below balance succeeds", func(t *testing.T) {
		s := NewInMemoryStore()
		s.Seed("u1", 500)
		require.NoError(t, s.Debit(ctx, "u1", 300))
		w, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, int64(200), w.Balance)
	})

	t.Run("debit past balance fails without mutation", func(t *testing.T) {
		s := NewInMemoryStore()
		s.Seed("u1", 100)
		err := s.Debit(ctx, "u1", 101)
		require.ErrorIs(t, err, sentinel.ErrInsufficientBalance)
		w, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, int64(100), w.Balance)
	})

	t.Run("debit on missing wallet is not found", func(t *testing.T) {
		s := NewInMemoryStore()
		require.ErrorIs(t, s.Debit(ctx, "ghost", 1), sentinel.ErrNotFound)
	})

	t.Run("get on missing wallet is not found", func(t *testing.T) {
		s := NewInMemoryStore()
		_, err := s.Get(ctx, "ghost")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
