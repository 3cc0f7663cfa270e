package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skilldeck/skilldeck/config"
	obserrors "github.com/skilldeck/skilldeck/internal/observability/errors"
	"github.com/skilldeck/skilldeck/internal/observability/metrics"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
)

// Sweeper drops expired entries from a store that has no native expiry.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	History *HistoryService     // Optional: nil skips history pruning
	Store   Sweeper             // Optional: nil skips store sweeping
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Clock   func() time.Time
}

// ReaperService prunes submission history and sweeps expired downloads,
// intents and guards out of the in-memory store.
type ReaperService struct {
	history *HistoryService
	store   Sweeper
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if !opts.History.Enabled() && opts.Store == nil {
		return nil, errors.New("reaper has nothing to clean: history and store are both disabled")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"history_max_age", opts.Config.HistoryMaxAge,
		"batch_size", opts.Config.BatchSize,
		"sweep_store", opts.Store != nil,
	)

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &ReaperService{
		history: opts.History,
		store:   opts.Store,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Replicas started together should not all prune at the same instant.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type cleanupStep struct {
	target string
	fn     func(context.Context) (int64, error)
}

// RunOnce performs one pass of every enabled cleanup step.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.now()
	var steps []cleanupStep
	if s.history.Enabled() {
		steps = append(steps, cleanupStep{target: "history", fn: s.pruneHistory})
	}
	if s.store != nil {
		steps = append(steps, cleanupStep{target: "store", fn: s.sweepStore})
	}

	var errs []error
	canceled := true
	for _, step := range steps {
		n, err := step.fn(ctx)
		metrics.EmitCleanup(s.metrics, step.target, n, suppressContextCancellation(err))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.target, err))
			canceled = canceled && isContextCancellation(err)
		}
	}

	s.emitRunMetrics(errors.Join(errs...), s.now().Sub(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if canceled {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

func (s *ReaperService) pruneHistory(ctx context.Context) (int64, error) {
	n, err := s.history.Prune(ctx, s.now(), s.config.HistoryMaxAge, s.config.BatchSize)
	if n > 0 {
		s.logger.InfoContext(ctx, "pruned submission history", "count", n, "max_age", s.config.HistoryMaxAge)
	}
	return n, err
}

func (s *ReaperService) sweepStore(ctx context.Context) (int64, error) {
	n, err := s.store.Sweep(ctx)
	if n > 0 {
		s.logger.DebugContext(ctx, "swept expired store entries", "count", n)
	}
	return int64(n), err
}

func (s *ReaperService) emitRunMetrics(err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"result": metrics.ResultSuccess}
	if err = suppressContextCancellation(err); err != nil {
		tags["result"] = metrics.ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
