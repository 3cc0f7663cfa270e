package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/job"
)

func sampleSubmissions(now time.Time) []*job.Submission {
	kind := job.FailureServer
	return []*job.Submission{
		{
			ID: "s2", SkillID: "pdf", OperationID: "merge", Status: job.SubmissionSucceeded,
			Filename: "merged.pdf", Bytes: 2048, DurationMS: 1200, CreatedAt: now.Add(-5 * time.Minute),
		},
		{
			ID: "s1", SkillID: "retired-skill", OperationID: "run", Status: job.SubmissionFailed,
			FailureKind: &kind, Message: "Template not found", DurationMS: 80, CreatedAt: now.Add(-2 * time.Hour),
		},
	}
}

func TestHistoryAPI_Disabled(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.apiJSON(http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["enabled"])
	assert.Equal(t, []any{}, body["submissions"])
	assert.NotContains(t, body, "stats")
}

func TestHistoryAPI_List(t *testing.T) {
	f := newRouterFixture(t, withHistory())
	now := time.Now()
	f.history.EXPECT().
		ListRecent(gomock.Any(), job.SubmissionFilter{SkillID: "pdf", Status: job.SubmissionFailed, Limit: 200}).
		Return(sampleSubmissions(now)[1:], nil)
	f.history.EXPECT().Stats(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, since time.Time) (*job.SubmissionStats, error) {
			assert.WithinDuration(t, now.Add(-48*time.Hour), since, time.Minute)
			return &job.SubmissionStats{Total: 3, Succeeded: 2, Failed: 1}, nil
		})

	rec := f.apiJSON(http.MethodGet, "/api/history?skill=pdf&status=FAILED&limit=5000&hours=48", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["enabled"])
	subs, ok := body["submissions"].([]any)
	require.True(t, ok)
	require.Len(t, subs, 1)
	row := subs[0].(map[string]any)
	assert.Equal(t, "server", row["failure_kind"])
	assert.Equal(t, map[string]any{"total": float64(3), "succeeded": float64(2), "failed": float64(1)}, body["stats"])
}

func TestHistoryAPI_RepositoryError(t *testing.T) {
	f := newRouterFixture(t, withHistory())
	f.history.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	rec := f.apiJSON(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeBody(t, rec)["error"])
}

func TestDashboard_WithHistory(t *testing.T) {
	f := newRouterFixture(t, withHistory())
	now := time.Now()
	f.history.EXPECT().ListRecent(gomock.Any(), job.SubmissionFilter{Limit: dashboardHistoryLimit}).
		Return(sampleSubmissions(now), nil)
	f.history.EXPECT().Stats(gomock.Any(), gomock.Any()).
		Return(&job.SubmissionStats{Total: 1234, Succeeded: 1200, Failed: 34}, nil)

	rec := f.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, ContainsAll(body, []string{
		"1,234",
		`href="/tools/pdf"`,
		"merged.pdf",
		"2.0 KB",
		"1.2s",
		"5 minutes ago",
		"badge-success",
		"retired-skill",
		"Template not found",
		"badge-danger",
	}), body)
	assert.NotContains(t, body, "History is not being recorded.")
}

func TestHistoryFragment(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		f := newRouterFixture(t, withHistory())
		f.history.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(nil, nil)

		rec := f.get("/history/recent")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No jobs yet.")
		assert.NotContains(t, rec.Body.String(), "<html")
	})

	t.Run("load failure", func(t *testing.T) {
		f := newRouterFixture(t, withHistory())
		f.history.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		rec := f.get("/history/recent?skill=pdf")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), errMsgUnableLoadHistory)
	})
}

func TestToolSubmit_RecordsHistory(t *testing.T) {
	f := newRouterFixture(t, withHistory())
	f.backend.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&core.BackendResponse{Status: http.StatusOK, ContentType: "application/json", Body: []byte(`{"content": "ok"}`)}, nil)
	f.history.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *job.Submission) error {
			assert.Equal(t, "internal-comms", s.SkillID)
			assert.Equal(t, "create", s.OperationID)
			assert.Equal(t, job.SubmissionSucceeded, s.Status)
			assert.NotEmpty(t, s.ID)
			return nil
		})

	rec := f.htmxPost("/tools/internal-comms/create/submit", commsForm())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Communication generated!")
}
