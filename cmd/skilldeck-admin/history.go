package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/skilldeck/skilldeck/internal/adapters/reaper"
	"github.com/skilldeck/skilldeck/internal/bootstrap"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/http/uiutil"
)

const defaultMigrationTimeout = 5 * time.Minute

type historyOptions struct {
	remoteOptions
	Skill  string
	Status string
	Limit  int
	Hours  int
}

type historyResponse struct {
	Enabled     bool                 `json:"enabled"`
	Submissions []*job.Submission    `json:"submissions"`
	Stats       *job.SubmissionStats `json:"stats,omitempty"`
}

func parseHistoryFlags(cmdCtx *commandContext, args []string) (historyOptions, error) {
	var opts historyOptions
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts.register(fs, cmdCtx)
	fs.StringVar(&opts.Skill, "skill", "", "Only show this skill")
	fs.StringVar(&opts.Status, "status", "", "Only show succeeded or failed submissions")
	fs.IntVar(&opts.Limit, "limit", job.DefaultHistoryLimit, "Maximum rows")
	fs.IntVar(&opts.Hours, "hours", 24, "Window for the totals line")
	if err := fs.Parse(args); err != nil {
		return historyOptions{}, err
	}
	switch job.SubmissionStatus(opts.Status) {
	case "", job.SubmissionSucceeded, job.SubmissionFailed:
	default:
		return historyOptions{}, fmt.Errorf("--status must be %q or %q", job.SubmissionSucceeded, job.SubmissionFailed)
	}
	if opts.Limit <= 0 {
		return historyOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func runHistory(cmdCtx *commandContext, args []string) error {
	opts, err := parseHistoryFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("hours", strconv.Itoa(opts.Hours))
	if opts.Skill != "" {
		query.Set("skill", opts.Skill)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp historyResponse
	if err := client.getJSON(cmdCtx.Ctx, "/api/history", query, &resp); err != nil {
		return err
	}
	return printHistory(cmdCtx, resp, opts.Hours)
}

func printHistory(cmdCtx *commandContext, resp historyResponse, hours int) error {
	if !resp.Enabled {
		return writeln(cmdCtx.Out, "history is disabled on this dashboard (DB_ENABLED=false)")
	}
	if s := resp.Stats; s != nil {
		if err := writef(cmdCtx.Out, "last %dh: %d total, %d succeeded, %d failed\n\n",
			hours, s.Total, s.Succeeded, s.Failed); err != nil {
			return err
		}
	}
	if len(resp.Submissions) == 0 {
		return writeln(cmdCtx.Out, "no submissions")
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "WHEN\tSKILL\tOPERATION\tSTATUS\tDURATION\tDETAIL\n"); err != nil {
		return err
	}
	for _, s := range resp.Submissions {
		detail := s.Filename
		if s.Status == job.SubmissionFailed {
			detail = s.Message
			if s.FailureKind != nil {
				detail = fmt.Sprintf("[%s] %s", *s.FailureKind, s.Message)
			}
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.CreatedAt.Local().Format(time.DateTime),
			s.SkillID,
			s.OperationID,
			s.Status,
			uiutil.FormatMillis(s.DurationMS),
			detail,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type dbOptions struct {
	Timeout time.Duration
}

func parseDBFlags(name string, args []string) (dbOptions, error) {
	opts := dbOptions{Timeout: defaultMigrationTimeout}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for the command to complete")
	if err := fs.Parse(args); err != nil {
		return dbOptions{}, err
	}
	if opts.Timeout <= 0 {
		return dbOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

// withDatabase connects to the history database even when DB_ENABLED is
// false, since the command asked for it explicitly.
func withDatabase(cmdCtx *commandContext, timeout time.Duration, f func(context.Context, *sql.DB) error) error {
	ctx, stop := withSignals(cmdCtx.Ctx)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()
	return f(ctx, db)
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBFlags("migrate", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return err
		}
		return writeln(cmdCtx.Out, "migrations completed")
	})
}

// runPrune performs one reaper pass against the history table.
func runPrune(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBFlags("prune", args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			DB:     db,
			Config: cmdCtx.Config.Reaper,
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		if err := runner.RunOnce(ctx); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		return writef(cmdCtx.Out, "pruned submissions older than %s\n", cmdCtx.Config.Reaper.HistoryMaxAge)
	})
}
