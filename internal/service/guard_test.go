package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/mocks"
)

func TestInflightGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("second acquire is refused until release", func(t *testing.T) {
		t.Parallel()
		g := NewInflightGuard(data.NewMemoryCacheRepo(testClock()), testPrefix)

		first, err := g.Acquire(ctx, "pdf:merge:a", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := g.Acquire(ctx, "pdf:merge:a", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, second)

		held, err := g.Held(ctx, "pdf:merge:a")
		require.NoError(t, err)
		assert.True(t, held)

		require.NoError(t, g.Release(ctx, first))
		held, err = g.Held(ctx, "pdf:merge:a")
		require.NoError(t, err)
		assert.False(t, held)

		third, err := g.Acquire(ctx, "pdf:merge:a", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, third)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		g := NewInflightGuard(data.NewMemoryCacheRepo(testClock()), testPrefix)

		a, err := g.Acquire(ctx, "pdf:merge:a", time.Minute)
		require.NoError(t, err)
		b, err := g.Acquire(ctx, "pdf:merge:b", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, a)
		assert.NotNil(t, b)
	})

	t.Run("expired lease does not release its successor", func(t *testing.T) {
		t.Parallel()
		clock := testClock()
		g := NewInflightGuard(data.NewMemoryCacheRepo(clock), testPrefix)

		stale, err := g.Acquire(ctx, "chat:c1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, stale)

		clock.AddTime(6 * time.Second)
		fresh, err := g.Acquire(ctx, "chat:c1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, fresh)

		require.NoError(t, g.Release(ctx, stale))
		held, err := g.Held(ctx, "chat:c1")
		require.NoError(t, err)
		assert.True(t, held, "the stale holder must not drop the new lease")
	})

	t.Run("release of nil lease is a no-op", func(t *testing.T) {
		t.Parallel()
		g := NewInflightGuard(data.NewMemoryCacheRepo(testClock()), testPrefix)
		assert.NoError(t, g.Release(ctx, nil))
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		t.Parallel()
		g := NewInflightGuard(data.NewMemoryCacheRepo(testClock()), testPrefix)
		_, err := g.Acquire(ctx, "", time.Minute)
		assert.Error(t, err)
	})

	t.Run("concurrent acquires have one winner", func(t *testing.T) {
		t.Parallel()
		g := NewInflightGuard(data.NewMemoryCacheRepo(testClock()), testPrefix)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l, err := g.Acquire(ctx, "pdf:split:x", time.Minute)
				assert.NoError(t, err)
				if l != nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestInflightGuard_ReleaseIsCompareAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	g := NewInflightGuard(cache, testPrefix)

	var owner []byte
	cache.EXPECT().SetIfNotExists(gomock.Any(), testPrefix+"inflight:chat:c1", gomock.Any(), time.Minute).
		DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) (bool, error) {
			owner = value
			return true, nil
		})
	lease, err := g.Acquire(ctx, "chat:c1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lease)

	// A separate read followed by a delete could remove a successor's marker,
	// so release must be a single conditional delete.
	cache.EXPECT().DeleteIfValue(gomock.Any(), testPrefix+"inflight:chat:c1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, value []byte) (bool, error) {
			assert.Equal(t, owner, value)
			return false, nil
		})
	require.NoError(t, g.Release(ctx, lease))

	cache.EXPECT().DeleteIfValue(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	assert.Error(t, g.Release(ctx, lease))
}

func TestNewInflightGuard_RequiresCache(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewInflightGuard(nil, testPrefix) })
}
