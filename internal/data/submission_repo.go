package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/data/database"
	"github.com/skilldeck/skilldeck/internal/data/pgxutil"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// Advisory lock namespace for history retention.
// Two-arg pg_try_advisory_xact_lock(major, minor) keeps it apart from other users of the database.
const (
	advisoryLockRetentionMajor = 1100
	advisoryLockRetentionPrune = 1
)

var submissionColumns = []string{
	"id",
	"skill_id",
	"operation_id",
	"status",
	"failure_kind",
	"message",
	"filename",
	"bytes",
	"duration_ms",
	"created_at",
}

// SubmissionRepoConfig holds options for the submission repository.
type SubmissionRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// SubmissionRepo stores submission history in Postgres.
type SubmissionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.SubmissionRepository = (*SubmissionRepo)(nil)

// NewSubmissionRepo creates a SubmissionRepo.
func NewSubmissionRepo(db *sql.DB, cfg SubmissionRepoConfig) *SubmissionRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionRepo{DB: db, timeProvider: tp, logger: logger.With("component", "submission_repo")}
}

// Insert records one submission outcome.
func (r *SubmissionRepo) Insert(ctx context.Context, s *job.Submission) error {
	if s == nil {
		return ErrSubmissionRequired
	}
	if s.ID == "" || s.SkillID == "" || s.OperationID == "" {
		return ErrSubmissionIncomplete
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	var failureKind *string
	if s.FailureKind != nil {
		k := string(*s.FailureKind)
		failureKind = &k
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO submissions (
			id, skill_id, operation_id, status, failure_kind, message,
			filename, bytes, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.SkillID, s.OperationID, string(s.Status), failureKind, s.Message,
		s.Filename, s.Bytes, s.DurationMS, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", apperrors.MapDBError(err))
	}
	s.CreatedAt = createdAt.UTC()
	return nil
}

// ListRecent returns submissions newest first, narrowed by the filter.
func (r *SubmissionRepo) ListRecent(ctx context.Context, f job.SubmissionFilter) ([]*job.Submission, error) {
	f = f.Normalize()
	query, args := database.BuildListQuery(database.NewListQueryOptions("submissions",
		database.WithColumns(submissionColumns...),
		database.WithCondition(database.WhereCond("skill_id", database.Equal, f.SkillID)),
		database.WithCondition(database.WhereCond("status", database.Equal, string(f.Status))),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(f.Limit),
	))

	var result []*job.Submission
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query submissions: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[job.Submission])
		if err != nil {
			return fmt.Errorf("collect submissions: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return result, nil
}

// Stats counts submissions per status since the given time.
func (r *SubmissionRepo) Stats(ctx context.Context, since time.Time) (*job.SubmissionStats, error) {
	var st job.SubmissionStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'succeeded'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM submissions
		WHERE created_at >= $1`, since.UTC(),
	).Scan(&st.Total, &st.Succeeded, &st.Failed)
	if err != nil {
		return nil, fmt.Errorf("submission stats: %w", apperrors.MapDBError(err))
	}
	return &st, nil
}

// DeleteOlderThan removes up to limit submissions created before cutoff.
// Concurrent callers skip the batch instead of waiting on each other.
func (r *SubmissionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockRetentionMajor, advisoryLockRetentionPrune).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				r.logger.DebugContext(ctx, "history prune skipped, lock held elsewhere")
				return nil
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM submissions
				WHERE id IN (
					SELECT id FROM submissions
					WHERE created_at < $1
					ORDER BY created_at
					LIMIT $2
				)`, cutoff.UTC(), limit)
			if err != nil {
				return fmt.Errorf("delete old submissions: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
