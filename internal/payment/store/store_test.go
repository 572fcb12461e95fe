package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexhub/internal/payment"
	"forexhub/internal/plan"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, 15*time.Minute), mr
}

func pending(id string, created time.Time) *payment.PendingPayment {
	return &payment.PendingPayment{
		RequestID:        id,
		SubjectID:        1,
		PlanKind:         plan.Monthly,
		Amount:           decimal.NewFromInt(999),
		PhoneNumber:      "254712345678",
		AccountReference: "M11000000001",
		State:            payment.StateInitiated,
		CreatedAt:        created,
	}
}

func stores(t *testing.T) map[string]payment.PendingStore {
	r, _ := newRedisStore(t)
	return map[string]payment.PendingStore{
		"memory": NewMemory(),
		"redis":  r,
	}
}

func TestPendingStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			got, err := s.Get(ctx, "ws_CO_1")
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, s.Put(ctx, pending("ws_CO_1", now)))
			assert.ErrorIs(t, s.Put(ctx, pending("ws_CO_1", now)), payment.ErrDuplicatePending)

			got, err = s.Get(ctx, "ws_CO_1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, payment.StateInitiated, got.State)
			assert.True(t, decimal.NewFromInt(999).Equal(got.Amount))
			assert.True(t, now.Equal(got.CreatedAt))

			ok, err := s.CompareAndSwapState(ctx, "ws_CO_1", payment.StateInitiated, payment.StateConfirmed)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.CompareAndSwapState(ctx, "ws_CO_1", payment.StateInitiated, payment.StateTimeout)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err = s.Get(ctx, "ws_CO_1")
			require.NoError(t, err)
			assert.Equal(t, payment.StateConfirmed, got.State)

			ok, err = s.CompareAndSwapState(ctx, "missing", payment.StateInitiated, payment.StateFailed)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, pending("ws_CO_0", now.Add(-time.Minute))))
			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ws_CO_0", list[0].RequestID)

			require.NoError(t, s.Remove(ctx, "ws_CO_1"))
			require.NoError(t, s.Remove(ctx, "ws_CO_1"))
			got, err = s.Get(ctx, "ws_CO_1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestCompareAndSwapSingleWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, pending("ws_CO_race", time.Now())))

			var wins int32
			var wg sync.WaitGroup
			for _, to := range []payment.State{payment.StateConfirmed, payment.StateTimeout, payment.StateFailed, payment.StateConfirmed} {
				wg.Add(1)
				go func(to payment.State) {
					defer wg.Done()
					ok, err := s.CompareAndSwapState(ctx, "ws_CO_race", payment.StateInitiated, to)
					assert.NoError(t, err)
					if ok {
						atomic.AddInt32(&wins, 1)
					}
				}(to)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestRedisKeyTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, s.Put(context.Background(), pending("ws_CO_ttl", time.Now())))
	assert.Equal(t, 15*time.Minute, mr.TTL("pending:ws_CO_ttl"))

	mr.FastForward(16 * time.Minute)
	got, err := s.Get(context.Background(), "ws_CO_ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompareAndSwapRejectsInvalidTransition(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, pending("ws_CO_fsm", time.Now())))
			ok, err := s.CompareAndSwapState(ctx, "ws_CO_fsm", payment.StateInitiated, payment.StateFailed)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = s.CompareAndSwapState(ctx, "ws_CO_fsm", payment.StateFailed, payment.StateConfirmed)
			assert.ErrorIs(t, err, payment.ErrInvalidTransition)
			assert.False(t, ok)

			got, err := s.Get(ctx, "ws_CO_fsm")
			require.NoError(t, err)
			assert.Equal(t, payment.StateFailed, got.State)
		})
	}
}

func TestRedisConfirmedRecordOutlivesTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, pending("ws_CO_paid", time.Now())))

	ok, err := s.CompareAndSwapState(ctx, "ws_CO_paid", payment.StateInitiated, payment.StateConfirmed)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, mr.TTL("pending:ws_CO_paid"))

	mr.FastForward(30*time.Minute + time.Second)
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, payment.StateConfirmed, list[0].State)
}
