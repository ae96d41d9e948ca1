package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr
}

func TestNewRedisClient(t *testing.T) {
	mr := setupRedis(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", "")
	require.NoError(t, err)
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), addr, "", "")
	assert.Error(t, err)
}

func TestVetLocker(t *testing.T) {
	mr := setupRedis(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", "")
	require.NoError(t, err)
	defer client.Close()

	vetID := uuid.New()
	ctx := context.Background()

	t.Run("ReleasesAfterRun", func(t *testing.T) {
		locker := NewVetLocker(client, 5*time.Second, 0)

		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error {
			assert.True(t, mr.Exists(lockKey(vetID)))
			ttl := mr.TTL(lockKey(vetID))
			assert.Equal(t, 5*time.Second, ttl)
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists(lockKey(vetID)))
	})

	t.Run("PropagatesError", func(t *testing.T) {
		locker := NewVetLocker(client, 5*time.Second, 0)
		boom := errors.New("boom")

		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, mr.Exists(lockKey(vetID)))
	})

	t.Run("BusyWithoutWait", func(t *testing.T) {
		require.NoError(t, mr.Set(lockKey(vetID), "someone-else"))
		defer mr.Del(lockKey(vetID))

		locker := NewVetLocker(client, 5*time.Second, 0)
		called := false
		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.False(t, called)

		// a foreign token is never deleted
		got, err := mr.Get(lockKey(vetID))
		require.NoError(t, err)
		assert.Equal(t, "someone-else", got)
	})

	t.Run("RedisErrorReportedAsNotAcquired", func(t *testing.T) {
		mr.SetError("ERR server unavailable")
		defer mr.SetError("")

		locker := NewVetLocker(client, 5*time.Second, 0)
		called := false
		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.False(t, called)
	})

	t.Run("WaitsForRelease", func(t *testing.T) {
		require.NoError(t, mr.Set(lockKey(vetID), "someone-else"))
		go func() {
			time.Sleep(100 * time.Millisecond)
			mr.Del(lockKey(vetID))
		}()

		locker := NewVetLocker(client, 5*time.Second, 2*time.Second)
		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error { return nil })
		assert.NoError(t, err)
	})

	t.Run("OtherVetsIndependent", func(t *testing.T) {
		locker := NewVetLocker(client, 5*time.Second, 0)
		other := uuid.New()

		err := locker.WithVetLock(ctx, vetID, func(ctx context.Context) error {
			return locker.WithVetLock(ctx, other, func(ctx context.Context) error { return nil })
		})
		assert.NoError(t, err)
	})
}

func TestVetLockerMutualExclusion(t *testing.T) {
	mr := setupRedis(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", "")
	require.NoError(t, err)
	defer client.Close()

	locker := NewVetLocker(client, 5*time.Second, 5*time.Second)
	vetID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithVetLock(context.Background(), vetID, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}
