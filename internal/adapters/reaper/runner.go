// Package reaper provides adapters for running the history and store janitor.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skilldeck/skilldeck/config"
	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
	"github.com/skilldeck/skilldeck/internal/service"
)

// Runner constructs the reaper service and runs its cleanup loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner. At least one
// of DB, Repo or Store must be set.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Store is the in-memory cache when Redis is disabled; Redis expires
	// keys itself and needs no sweeping.
	Store service.Sweeper

	// Optional dependency injection for testing
	Repo    core.SubmissionRepository
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil && opts.Store == nil {
		return nil, errors.New("reaper needs a database or an in-memory store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil && opts.DB != nil {
		repo = data.NewSubmissionRepo(opts.DB, data.SubmissionRepoConfig{})
	}
	var history *service.HistoryService
	if repo != nil {
		history = service.NewHistoryService(service.HistoryServiceOptions{Repo: repo, Logger: opts.Logger})
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		History: history,
		Store:   opts.Store,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// RunOnce performs a single cleanup pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.reaper.RunOnce(ctx)
}
