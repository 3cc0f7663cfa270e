package httpx

import (
	"net/http"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// HistoryHandlers serves submission history over JSON.
type HistoryHandlers struct {
	Svc HistoryReader
}

type historyResponse struct {
	Enabled     bool                 `json:"enabled"`
	Submissions []*job.Submission    `json:"submissions"`
	Stats       *job.SubmissionStats `json:"stats,omitempty"`
}

// List returns recent submissions filtered by ?skill=, ?status= and ?limit=,
// plus totals for the last ?hours= (default 24). With history disabled the
// list is empty and enabled is false.
func (h *HistoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	resp := historyResponse{Submissions: []*job.Submission{}}
	if h.Svc == nil || !h.Svc.Enabled() {
		WriteJSON(w, http.StatusOK, resp)
		return
	}
	resp.Enabled = true

	ctx := r.Context()
	subs, err := h.Svc.Recent(ctx, historyFilter(r, job.DefaultHistoryLimit))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if subs != nil {
		resp.Submissions = subs
	}

	hours := min(max(parseIntQuery(r, "hours", 24), 1), 24*30)
	stats, err := h.Svc.Stats(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	resp.Stats = stats
	WriteJSON(w, http.StatusOK, resp)
}
