package httpx

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/mocks"
	"github.com/skilldeck/skilldeck/internal/service"
	"github.com/skilldeck/skilldeck/internal/testutil"
)

const (
	testPrefix    = "test:"
	testCSRFToken = "test-csrf-token"
)

// routerFixture is the full router over real services, an in-memory cache
// and a mocked skills backend.
type routerFixture struct {
	backend   *mocks.MockSkillsBackend
	history   *mocks.MockSubmissionRepository
	cache     *data.MemoryCacheRepo
	guard     *service.InflightGuard
	catalog   *skill.Catalog
	assistant *service.AssistantService
	handler   http.Handler
}

type fixtureOption func(*RouterServices, *routerFixture)

// withHistory wires a mocked submission repository into the history service.
func withHistory() fixtureOption {
	return func(rs *RouterServices, f *routerFixture) {
		rs.History = service.NewHistoryService(service.HistoryServiceOptions{Repo: f.history, Logger: rs.Logger})
	}
}

func newRouterFixture(t *testing.T, opts ...fixtureOption) *routerFixture {
	t.Helper()
	SkipIfNoTemplates(t)

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &routerFixture{
		backend: mocks.NewMockSkillsBackend(ctrl),
		history: mocks.NewMockSubmissionRepository(ctrl),
		cache:   data.NewMemoryCacheRepo(nil),
		catalog: testutil.LoadCatalog(t),
	}
	f.guard = service.NewInflightGuard(f.cache, testPrefix)
	downloads := service.NewDownloadStore(f.cache, testPrefix, time.Minute)
	f.assistant = service.NewAssistantService(service.AssistantServiceOptions{
		Backend: f.backend,
		Catalog: f.catalog,
		Cache:   f.cache,
		Guard:   f.guard,
		Config:  service.AssistantConfig{Timeout: time.Second, NavigateDelay: 1500 * time.Millisecond, Prefix: testPrefix},
		Logger:  logger,
	})

	rs := RouterServices{
		Catalog:   f.catalog,
		Results:   service.NewResultHandler(downloads, logger),
		Downloads: downloads,
		Options: service.NewOptionsService(service.OptionsServiceOptions{
			Backend: f.backend,
			Cache:   f.cache,
			Config:  service.OptionsConfig{Timeout: time.Second, Prefix: testPrefix},
			Logger:  logger,
		}),
		Assistant:      f.assistant,
		MaxUploadBytes: 1 << 20,
		TemplateFS:     os.DirFS(TemplatePathFromTest),
		StaticFS:       os.DirFS("../../frontend/static"),
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&rs, f)
	}
	rs.Submissions = service.NewSubmissionService(service.SubmissionServiceOptions{
		Backend: f.backend,
		Guard:   f.guard,
		Config:  service.SubmissionConfig{Timeout: time.Second},
		History: rs.History,
		Logger:  logger,
	})
	f.handler = NewRouter(rs)
	return f
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// get issues a browser GET.
func (f *routerFixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	return f.serve(req)
}

// htmxPost issues an htmx form post carrying a valid CSRF token pair.
func (f *routerFixture) htmxPost(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	withCSRF(req)
	req.Header.Set("Hx-Request", "true")
	return f.serve(req)
}

// apiJSON issues a JSON API request.
func (f *routerFixture) apiJSON(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.serve(req)
}

func withCSRF(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	req.Header.Set(DefaultCSRFHeaderName, testCSRFToken)
}

// uploadPart is one file of a multipart body.
type uploadPart struct {
	field, filename, content string
}

// multipartBody encodes fields and files as multipart/form-data.
func multipartBody(t *testing.T, fields url.Values, files ...uploadPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, p := range files {
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
