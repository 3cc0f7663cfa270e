package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/config"
	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/mocks"
)

var testConfig = config.ReaperConfig{Interval: time.Minute, HistoryMaxAge: time.Hour, BatchSize: 10}

func TestNewRunner_RequiresSomethingToClean(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Config: testConfig})
	require.Error(t, err)
}

func TestRunner_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSubmissionRepository(ctrl)
	repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), 10).Return(int64(2), nil)

	store := data.NewMemoryCacheRepo(nil)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), time.Hour))

	r, err := NewRunner(RunnerOptions{Repo: repo, Store: store, Config: testConfig})
	require.NoError(t, err)
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 1, store.Len(), "unexpired entries survive a sweep")
}

func TestRunner_StopsOnCancel(t *testing.T) {
	r, err := NewRunner(RunnerOptions{Store: data.NewMemoryCacheRepo(nil), Config: testConfig})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx))
}
