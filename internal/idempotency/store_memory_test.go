package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giftvault/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("miss returns not found", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		rec := Record{Key: "k1", EscrowID: "e1", Operation: OperationRelease, Result: json.RawMessage(`{"status":"released"}`)}
		stored, err := s.Put(ctx, rec)
		require.NoError(t, err)
		require.False(t, stored.ExpiresAt.IsZero())

		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, rec.Result, got.Result)
		require.Equal(t, OperationRelease, got.Operation)
	})

	t.Run("first writer wins", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		first, err := s.Put(ctx, Record{Key: "k", EscrowID: "e1", Operation: OperationRelease, Result: json.RawMessage(`"first"`)})
		require.NoError(t, err)
		second, err := s.Put(ctx, Record{Key: "k", EscrowID: "e1", Operation: OperationRelease, Result: json.RawMessage(`"second"`)})
		require.NoError(t, err)
		require.Equal(t, first.Result, second.Result)
	})

	t.Run("concurrent puts converge on one result", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		const writers = 32
		results := make([]json.RawMessage, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				payload, _ := json.Marshal(i)
				rec, err := s.Put(ctx, Record{Key: "race", EscrowID: "e1", Operation: OperationRefund, Result: payload})
				require.NoError(t, err)
				results[i] = rec.Result
			}(i)
		}
		wg.Wait()
		for i := 1; i < writers; i++ {
			require.Equal(t, results[0], results[i])
		}
	})

	t.Run("sweep purges only expired records", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		_, err := s.Put(ctx, Record{Key: "live", EscrowID: "e1", Operation: OperationRelease})
		require.NoError(t, err)
		_, err = s.Put(ctx, Record{
			Key: "dead", EscrowID: "e2", Operation: OperationRelease,
			CreatedAt: time.Now().Add(-2 * time.Hour),
			ExpiresAt: time.Now().Add(-time.Hour),
		})
		require.NoError(t, err)

		purged := s.Sweep(time.Now())
		require.Equal(t, 1, purged)

		_, err = s.Get(ctx, "live")
		require.NoError(t, err)
		_, err = s.Get(ctx, "dead")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired record reads as miss before sweep", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		_, err := s.Put(ctx, Record{
			Key: "stale", EscrowID: "e1", Operation: OperationRefund,
			CreatedAt: time.Now().Add(-2 * time.Hour),
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)
		_, err = s.Get(ctx, "stale")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
