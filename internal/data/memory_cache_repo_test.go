package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/testutil"
)

func TestMemoryCacheRepo(t *testing.T) {
	testCacheRepo(t, NewMemoryCacheRepo(nil))
}

func TestMemoryCacheRepo_Expiry(t *testing.T) {
	clock := NewFixedTimeProvider(testutil.TestTime())
	repo := NewMemoryCacheRepo(clock)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, repo.Set(ctx, "forever", []byte("b"), 0))
	ok, err := repo.SetIfNotExists(ctx, "guard", []byte("c"), 0)
	require.NoError(t, err)
	require.True(t, ok)

	clock.AddTime(2 * time.Second)

	// The guard got the one second floor and has lapsed.
	ok, err = repo.SetIfNotExists(ctx, "guard", []byte("d"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.AddTime(time.Minute)

	got, err := repo.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Take(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)

	updated, err := repo.SetTTL(ctx, "short", time.Minute)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestMemoryCacheRepo_Sweep(t *testing.T) {
	clock := NewFixedTimeProvider(testutil.TestTime())
	repo := NewMemoryCacheRepo(clock)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, repo.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, repo.Set(ctx, "c", []byte("3"), 0))

	n, err := repo.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.AddTime(time.Minute)
	n, err = repo.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, repo.Len())
}

func TestMemoryCacheRepo_CopiesValues(t *testing.T) {
	repo := NewMemoryCacheRepo(nil)
	ctx := context.Background()

	v := []byte("abc")
	require.NoError(t, repo.Set(ctx, "k", v, 0))
	v[0] = 'z'

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'z'

	again, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryCacheRepo_RunStops(t *testing.T) {
	repo := NewMemoryCacheRepo(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		repo.Run(ctx, 5*time.Millisecond, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
