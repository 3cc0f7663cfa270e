package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

// DisplayRow is one labelled value of a record result.
type DisplayRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
	// Multiline marks values that read better in a preformatted block.
	Multiline bool `json:"multiline,omitempty"`
}

// Outcome is a result prepared for rendering.
type Outcome struct {
	Kind        job.Kind        `json:"kind"`
	Message     string          `json:"message"`
	DownloadURL string          `json:"download_url,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Bytes       int64           `json:"bytes,omitempty"`
	Rows        []DisplayRow    `json:"rows,omitempty"`
	Record      job.Record      `json:"record,omitempty"`
	FailureKind job.FailureKind `json:"failure_kind,omitempty"`
	Status      int             `json:"status,omitempty"`
}

// IsDownload reports whether the outcome carries a file.
func (o Outcome) IsDownload() bool { return o.DownloadURL != "" }

// Failed reports whether the outcome is an error.
func (o Outcome) Failed() bool { return o.Kind == job.KindFailure }

// ResultHandler turns controller results into download links or display rows.
type ResultHandler struct {
	downloads *DownloadStore
	logger    *slog.Logger
}

// NewResultHandler constructs a ResultHandler.
func NewResultHandler(downloads *DownloadStore, logger *slog.Logger) *ResultHandler {
	if downloads == nil {
		panic("ResultHandler requires a download store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultHandler{downloads: downloads, logger: logger.With("component", "result_handler")}
}

// Handle prepares res for display. Every binary result gets its own token,
// so handling the same result twice yields two independent downloads.
func (h *ResultHandler) Handle(ctx context.Context, op *skill.Operation, cfg job.Config, res job.Result) (Outcome, error) {
	switch {
	case res.Failure != nil:
		return Outcome{
			Kind:        job.KindFailure,
			Message:     res.Failure.Message,
			FailureKind: res.Failure.Kind,
			Status:      res.Failure.Status,
		}, nil
	case res.Blob != nil:
		token, err := h.downloads.Put(ctx, res.Blob)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:        job.KindSuccess,
			Message:     op.Success(cfg),
			DownloadURL: h.downloads.URL(token),
			Filename:    res.Blob.Filename,
			ContentType: res.Blob.ContentType,
			Bytes:       res.Bytes(),
		}, nil
	default:
		return Outcome{
			Kind:    job.KindSuccess,
			Message: op.Success(cfg),
			Rows:    h.rows(op, res.Record),
			Record:  res.Record,
		}, nil
	}
}

// rows evaluates the operation's display expressions, or lists every
// top-level key in sorted order when none are declared.
func (h *ResultHandler) rows(op *skill.Operation, rec job.Record) []DisplayRow {
	if len(op.Display) == 0 {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out := make([]DisplayRow, 0, len(keys))
		for _, k := range keys {
			out = append(out, displayRow(humanize(k), rec[k]))
		}
		return out
	}

	doc := map[string]any(rec)
	out := make([]DisplayRow, 0, len(op.Display))
	for _, d := range op.Display {
		v, err := jmespath.Search(d.Expr, doc)
		if err != nil {
			h.logger.Debug("display expression failed", "expr", d.Expr, "error", err)
			continue
		}
		if v == nil {
			continue
		}
		out = append(out, displayRow(d.Label, v))
	}
	return out
}

func displayRow(label string, v any) DisplayRow {
	s := formatValue(v)
	return DisplayRow{Label: label, Value: s, Multiline: strings.Contains(s, "\n")}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		scalar := true
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				scalar = false
			}
			parts = append(parts, formatValue(item))
		}
		if scalar {
			return strings.Join(parts, ", ")
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// humanize turns page_count into Page count.
func humanize(key string) string {
	s := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	if s == "" {
		return key
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
