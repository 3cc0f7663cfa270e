package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/http/uiutil"
)

const errMsgUnableLoadHistory = "Unable to load recent submissions"

// DashboardSubmission is a history row with the skill's display name.
type DashboardSubmission struct {
	*job.Submission
	SkillName string
	SkillIcon string
	SkillURL  string
}

// FriendlyCreatedAt returns a human friendly description of when the submission ran.
func (s DashboardSubmission) FriendlyCreatedAt() string {
	return uiutil.FriendlyRelativeTime(s.CreatedAt)
}

// Took returns the request duration for display.
func (s DashboardSubmission) Took() string {
	return uiutil.FormatMillis(s.DurationMS)
}

// Index serves the home page: the skill grid plus recent activity.
func (h *UIHandlers) Index(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "Skilldeck - Dashboard", PageTitle: "Dashboard", CurrentPage: PageHome},
		Fetch: func(ctx context.Context, data map[string]any) error {
			h.populateHistory(ctx, data, job.SubmissionFilter{Limit: dashboardHistoryLimit})
			h.populateStats(ctx, data)
			return nil
		},
	})
}

// HistoryFragment serves the recent submissions table, refreshed after each submit.
func (h *UIHandlers) HistoryFragment(w http.ResponseWriter, r *http.Request) {
	data := basePageData(r, PageMeta{})
	h.populateHistory(r.Context(), data, historyFilter(r, dashboardHistoryLimit))
	h.renderFragment(w, r, "history-table", data)
}

func (h *UIHandlers) populateHistory(ctx context.Context, data map[string]any, f job.SubmissionFilter) {
	data["HistoryEnabled"] = false
	data["History"] = []DashboardSubmission{}
	data["HistoryError"] = ""

	if h.History == nil || !h.History.Enabled() {
		return
	}
	data["HistoryEnabled"] = true

	subs, err := h.History.Recent(ctx, f)
	if err != nil {
		h.logger().WarnContext(ctx, "failed to fetch recent submissions", "error", err)
		data["HistoryError"] = errMsgUnableLoadHistory
		return
	}
	data["History"] = h.toDashboardSubmissions(subs)
}

func (h *UIHandlers) populateStats(ctx context.Context, data map[string]any) {
	if h.History == nil || !h.History.Enabled() {
		return
	}
	stats, err := h.History.Stats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger().WarnContext(ctx, "failed to fetch submission stats", "error", err)
		return
	}
	data["Stats"] = stats
}

func (h *UIHandlers) toDashboardSubmissions(subs []*job.Submission) []DashboardSubmission {
	rows := make([]DashboardSubmission, 0, len(subs))
	for _, s := range subs {
		row := DashboardSubmission{Submission: s, SkillName: s.SkillID}
		if h.Catalog != nil {
			if sk, ok := h.Catalog.Skill(s.SkillID); ok {
				row.SkillName = sk.Name
				row.SkillIcon = sk.Icon
				row.SkillURL = sk.Route()
			}
		}
		rows = append(rows, row)
	}
	return rows
}
