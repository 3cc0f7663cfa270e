package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTemplates_DefineEveryRenderedName(t *testing.T) {
	tr := RequireTemplateRenderer(t)
	for _, name := range []string{
		"layout", "error-layout",
		"dashboard-content", "tool-content", "error-content",
		"skill-form", "submit-button", "history-table",
		"assistant-exchange", "assistant-transcript", "quick-actions",
	} {
		assert.True(t, tr.Has(name), "template %q", name)
	}
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Dashboard(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, ContainsAll(body, []string{
		"<title>Skilldeck - Dashboard</title>",
		`href="/tools/pdf"`,
		"Documents &amp; Office",
		"History is not being recorded.",
		`name="csrf-token"`,
	}), body)
	assert.NotEmpty(t, rec.Result().Cookies(), "first visit issues the CSRF cookie")
}

func TestRouter_PartialNavigation(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/tools/pdf", nil)
	req.Header.Set("Hx-Request", "true")
	f.backend.EXPECT().FetchJSON(gomock.Any(), gomock.Any()).AnyTimes().Return(nil, nil)
	rec := f.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>PDF Processor - Skilldeck</title>")
	assert.Contains(t, body, `id="header-title"`)
	assert.NotContains(t, body, "<html", "htmx navigation gets the content only")
	assert.Contains(t, rec.Header().Get("Hx-Trigger"), "nav:activate")
}

func TestRouter_NotFound(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("browser gets the error page", func(t *testing.T) {
		rec := f.get("/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "doesn&#39;t exist")
	})

	t.Run("api gets json", func(t *testing.T) {
		rec := f.apiJSON(http.MethodGet, "/api/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body["error"])
	})

	t.Run("unknown skill", func(t *testing.T) {
		rec := f.get("/tools/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_LegacyRedirect(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get("/dashboard-pdf?intent=abc")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tools/pdf?intent=abc", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard-docx", nil)
	req.Header.Set("Hx-Request", "true")
	rec = f.serve(req)
	assert.Equal(t, "/tools/docx", rec.Header().Get("Hx-Redirect"))
}

func TestRouter_StaticCacheHeaders(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	rec = f.serve(httptest.NewRequest(http.MethodGet, "/static/css/app.css?v=1a2b3c4d", nil))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
}

func TestRouter_CSRFRequiredForDashboardPosts(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/tools/internal-comms/create/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	rec := f.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
