package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/observability/metrics"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
)

// SubmissionConfig holds the controller's time limits.
type SubmissionConfig struct {
	// Timeout is the deadline for one backend request.
	Timeout time.Duration
	// GuardTTL bounds how long a form instance stays locked if a process dies
	// mid-request. It should exceed Timeout.
	GuardTTL time.Duration
}

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Backend core.SkillsBackend // Required
	Guard   *InflightGuard     // Required
	Config  SubmissionConfig
	History *HistoryService // Optional: nil disables history
	Metrics statsd.Sink     // Optional
	Logger  *slog.Logger    // Optional
	Clock   func() time.Time
}

// SubmissionService hands out per-form controllers that share the backend,
// guard, history and metrics.
type SubmissionService struct {
	backend core.SkillsBackend
	guard   *InflightGuard
	cfg     SubmissionConfig
	history *HistoryService
	metrics statsd.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) *SubmissionService {
	if opts.Backend == nil {
		panic("SubmissionService requires a backend")
	}
	if opts.Guard == nil {
		panic("SubmissionService requires an in-flight guard")
	}
	cfg := opts.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.GuardTTL < cfg.Timeout {
		cfg.GuardTTL = cfg.Timeout + 15*time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &SubmissionService{
		backend: opts.Backend,
		guard:   opts.Guard,
		cfg:     cfg,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  logger.With("component", "submission_service"),
		now:     now,
	}
}

// NewInstanceID returns a fresh form instance id.
func NewInstanceID() string { return uuid.NewString() }

// Controller returns the controller for one form instance. Two instances of
// the same page get independent guards.
func (s *SubmissionService) Controller(sk *skill.Skill, op *skill.Operation, instanceID string) *Controller {
	if instanceID == "" {
		instanceID = NewInstanceID()
	}
	return &Controller{svc: s, skill: sk, op: op, instanceID: instanceID}
}

// Controller runs at most one submission at a time for a form instance.
type Controller struct {
	svc        *SubmissionService
	skill      *skill.Skill
	op         *skill.Operation
	instanceID string
}

// InstanceID returns the form instance id the controller guards.
func (c *Controller) InstanceID() string { return c.instanceID }

func (c *Controller) guardKey() string {
	return c.skill.ID + ":" + c.op.ID + ":" + c.instanceID
}

// InFlight reports whether a submission is pending for this instance. A
// guard read failure counts as not in flight.
func (c *Controller) InFlight(ctx context.Context) bool {
	held, err := c.svc.guard.Held(ctx, c.guardKey())
	if err != nil {
		c.svc.logger.WarnContext(ctx, "in-flight check failed", "error", err, "skill", c.skill.ID)
		return false
	}
	return held
}

// CanSubmit is the form's own predicate with the in-flight state folded in.
func (c *Controller) CanSubmit(ctx context.Context, v skill.Values, loaded skill.OptionSet) bool {
	return c.op.CanSubmit(v, loaded) && !c.InFlight(ctx)
}

// Submit performs one backend request and always returns a Result. A second
// call while the first is pending fails fast with FailureBusy and issues no
// request.
func (c *Controller) Submit(ctx context.Context, cfg job.Config) job.Result {
	s := c.svc
	logger := s.logger.With("skill", c.skill.ID, "operation", c.op.ID, "instance", c.instanceID)

	lease, err := s.guard.Acquire(ctx, c.guardKey(), s.cfg.GuardTTL)
	switch {
	case err != nil:
		// The guard store being down should not take submissions with it.
		logger.WarnContext(ctx, "in-flight guard unavailable, submitting unguarded", "error", err)
	case lease == nil:
		res := job.Failed(job.FailureBusy, job.MessageBusy, 0)
		metrics.EmitSubmission(s.metrics, metrics.SubmissionMetric{
			Skill: c.skill.ID, Operation: c.op.ID, Result: metrics.ResultNoop,
		})
		return res
	}

	start := s.now()
	res, cause := c.do(ctx, cfg, start)
	took := s.now().Sub(start)

	bg := context.WithoutCancel(ctx)
	if relErr := s.guard.Release(bg, lease); relErr != nil {
		logger.WarnContext(ctx, "release in-flight guard", "error", relErr)
	}

	c.observe(bg, logger, res, cause, took, start)
	return res
}

func (c *Controller) do(ctx context.Context, cfg job.Config, start time.Time) (job.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.svc.cfg.Timeout)
	defer cancel()

	resp, err := c.svc.backend.Submit(ctx, c.op, cfg)
	if err != nil {
		return c.failure(err), err
	}
	return c.interpret(resp, cfg, start)
}

// failure converts a backend error into a failure result with a message the
// user can act on.
func (c *Controller) failure(err error) job.Result {
	var f *job.Failure
	if !errors.As(err, &f) {
		f = &job.Failure{Kind: job.FailureNetwork}
	}
	msg := f.Message
	if msg == "" {
		msg = job.DefaultMessage(f.Kind)
	}
	if msg == "" {
		msg = c.op.Failure()
	}
	return job.Failed(f.Kind, msg, f.Status)
}

func (c *Controller) interpret(resp *core.BackendResponse, cfg job.Config, start time.Time) (job.Result, error) {
	mode := c.op.Response
	if mode == "" || mode == skill.ResponseAuto {
		mode = skill.ResponseBinary
		if resp.IsJSON() {
			mode = skill.ResponseRecord
		}
	}

	if mode == skill.ResponseRecord {
		rec, err := decodeRecord(resp.Body)
		if err != nil {
			return job.Failed(job.FailureMalformed, job.MessageMalformed, resp.Status), err
		}
		return job.Structured(rec), nil
	}

	ct := resp.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return job.Binary(job.Blob{
		Filename:    c.filename(resp, cfg, ct, start),
		ContentType: ct,
		Data:        resp.Body,
	}), nil
}

// decodeRecord parses a JSON body. Non-object documents are kept under "result".
func decodeRecord(body []byte) (job.Record, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if m, ok := v.(map[string]any); ok {
		return job.Record(m), nil
	}
	return job.Record{"result": v}, nil
}

// filename picks the download name: the backend's Content-Disposition first,
// then the operation's naming rule, then <skill>_<operation>_<unixms><ext>.
func (c *Controller) filename(resp *core.BackendResponse, cfg job.Config, contentType string, now time.Time) string {
	if resp.Filename != "" {
		return resp.Filename
	}
	if name := c.op.SuggestFilename(cfg, now); name != "" {
		return name
	}
	return c.skill.ID + "_" + c.op.ID + "_" + strconv.FormatInt(now.UnixMilli(), 10) + extensionFor(contentType)
}

var preferredExt = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/zip": ".zip",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/svg+xml":   ".svg",
	"text/html":       ".html",
	"text/markdown":   ".md",
	"text/plain":      ".txt",
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := preferredExt[mt]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func (c *Controller) observe(ctx context.Context, logger *slog.Logger, res job.Result, cause error, took time.Duration, at time.Time) {
	s := c.svc
	m := metrics.SubmissionMetric{
		Skill:     c.skill.ID,
		Operation: c.op.ID,
		Result:    metrics.ResultSuccess,
		Duration:  took,
		Bytes:     res.Bytes(),
	}
	if !res.OK() {
		m.Result = metrics.ResultError
		m.Err = cause
		if m.Err == nil {
			m.Err = res.Failure
		}
		logger.WarnContext(ctx, "submission failed",
			"kind", res.Failure.Kind, "status", res.Failure.Status, "error", cause, "duration", took)
	} else {
		logger.InfoContext(ctx, "submission completed", "bytes", res.Bytes(), "duration", took)
	}
	metrics.EmitSubmission(s.metrics, m)

	sub := job.NewSubmission(uuid.NewString(), c.skill.ID, c.op.ID, res, took, at)
	if err := s.history.Record(ctx, &sub); err != nil {
		logger.WarnContext(ctx, "record submission history", "error", err)
	}
}
