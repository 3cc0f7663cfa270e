package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// HistoryServiceOptions groups dependencies for HistoryService.
type HistoryServiceOptions struct {
	Repo   core.SubmissionRepository // Optional: nil disables history
	Logger *slog.Logger              // Optional
}

// HistoryService records and lists submission outcomes. A nil service or one
// without a repository accepts writes and returns empty reads.
type HistoryService struct {
	repo   core.SubmissionRepository
	logger *slog.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(opts HistoryServiceOptions) *HistoryService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{repo: opts.Repo, logger: logger.With("component", "history_service")}
}

// Enabled reports whether outcomes are persisted.
func (h *HistoryService) Enabled() bool { return h != nil && h.repo != nil }

// Record stores one outcome.
func (h *HistoryService) Record(ctx context.Context, s *job.Submission) error {
	if !h.Enabled() || s == nil {
		return nil
	}
	if err := h.repo.Insert(ctx, s); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// Recent lists outcomes newest first.
func (h *HistoryService) Recent(ctx context.Context, f job.SubmissionFilter) ([]*job.Submission, error) {
	if !h.Enabled() {
		return nil, nil
	}
	out, err := h.repo.ListRecent(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}

// Stats counts outcomes since the given time.
func (h *HistoryService) Stats(ctx context.Context, since time.Time) (*job.SubmissionStats, error) {
	if !h.Enabled() {
		return &job.SubmissionStats{}, nil
	}
	st, err := h.repo.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("submission stats: %w", err)
	}
	return st, nil
}

// Prune deletes outcomes older than maxAge in batches until a batch comes
// back short. It returns the total removed.
func (h *HistoryService) Prune(ctx context.Context, now time.Time, maxAge time.Duration, batch int) (int64, error) {
	if !h.Enabled() {
		return 0, nil
	}
	cutoff := now.Add(-maxAge)
	var total int64
	for {
		n, err := h.repo.DeleteOlderThan(ctx, cutoff, batch)
		total += n
		if err != nil {
			return total, fmt.Errorf("prune submissions: %w", err)
		}
		if n < int64(batch) {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}
