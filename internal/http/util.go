package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseLimit reads ?limit= and clamps it to [1, maxLimit].
func parseLimit(r *http.Request, defLimit, maxLimit int) int {
	if maxLimit < 1 {
		maxLimit = 1
	}
	lim := parseIntQuery(r, "limit", defLimit)
	return min(max(lim, 1), maxLimit)
}

// historyFilter builds a history filter from ?skill=, ?status= and ?limit=.
// Unknown statuses are ignored.
func historyFilter(r *http.Request, defLimit int) job.SubmissionFilter {
	q := r.URL.Query()
	f := job.SubmissionFilter{
		SkillID: strings.TrimSpace(q.Get("skill")),
		Limit:   parseLimit(r, defLimit, maxHistoryLimit),
	}
	switch s := job.SubmissionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))); s {
	case job.SubmissionSucceeded, job.SubmissionFailed:
		f.Status = s
	}
	return f
}
