package httpx

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	skilldeck "github.com/skilldeck/skilldeck"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	httpassets "github.com/skilldeck/skilldeck/internal/http/assets"
	"github.com/skilldeck/skilldeck/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Catalog     *skill.Catalog
	Submissions *service.SubmissionService
	Results     *service.ResultHandler
	Downloads   *service.DownloadStore
	Options     *service.OptionsService
	Assistant   *service.AssistantService
	History     *service.HistoryService // Optional: nil disables history
	// Health checks reported by /readyz, keyed by dependency name.
	Health map[string]HealthChecker

	MaxUploadBytes int64
	CookieDomain   string
	SecureCookies  bool
	// AllowAnyWSOrigin disables the websocket same-origin check.
	AllowAnyWSOrigin bool

	// TemplateFS and StaticFS override where templates and static files are
	// read from. By default they come from disk in dev mode and from the
	// embedded filesystem otherwise.
	TemplateFS fs.FS
	StaticFS   fs.FS

	IsDev  bool         // Development mode flag for hot reloading, etc.
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

func (s RouterServices) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s RouterServices) toolServices() ToolServices {
	return ToolServices{
		Catalog:        s.Catalog,
		Submissions:    s.Submissions,
		Results:        s.Results,
		Options:        s.Options,
		MaxUploadBytes: s.MaxUploadBytes,
	}
}

// NewRouter creates and configures a new HTTP router with browser middleware.
func NewRouter(services RouterServices) http.Handler {
	if services.Catalog == nil || services.Submissions == nil || services.Results == nil || services.Options == nil {
		panic("NewRouter requires the catalog, submission, result and options services")
	}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Health, services.logger()))

	skillHandlers := &SkillHandlers{ToolServices: services.toolServices(), Logger: services.Logger}
	historyHandlers := &HistoryHandlers{}
	if services.History != nil {
		historyHandlers.Svc = services.History
	}
	registerSkillRoutes(mux, skillHandlers)
	mux.HandleFunc("GET /api/history", historyHandlers.List)

	if services.Assistant != nil {
		registerAssistantRoutes(mux, &AssistantHandlers{Svc: services.Assistant, Logger: services.Logger})
		mux.Handle("GET /api/assistant/ws", &AssistantSocket{
			Svc:            services.Assistant,
			AllowAnyOrigin: services.AllowAnyWSOrigin,
			Logger:         services.Logger,
		})
	}

	staticFS := services.StaticFS
	if staticFS == nil {
		staticFS = defaultStaticFS(services.IsDev, services.logger())
	}
	mux.Handle("GET /static/", staticWithCacheHeaders(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))), services.IsDev))

	uiHandlers := setupUIHandlers(services, staticFS)
	if uiHandlers != nil {
		registerUIRoutes(mux, uiHandlers)
	}

	// Wrap with NotFound handler and browser detection middleware
	handler := &notFoundHandler{
		mux:        mux,
		uiHandlers: uiHandlers,
	}

	csrf := CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain, Skip: SkipAPIRequests})
	return Chain(handler, csrf, BrowserDetection())
}

func defaultStaticFS(isDev bool, logger *slog.Logger) fs.FS {
	if isDev {
		return os.DirFS("frontend/static")
	}
	staticSub, err := fs.Sub(skilldeck.StaticFS, "frontend/static")
	if err != nil {
		logger.Error("failed to create sub-filesystem for static assets; falling back to disk", "error", err)
		return os.DirFS("frontend/static")
	}
	return staticSub
}

func defaultTemplateFS(isDev bool, logger *slog.Logger) fs.FS {
	if isDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	templateFS, err := fs.Sub(skilldeck.TemplateFS, "frontend/templates")
	if err != nil {
		logger.Error("failed to create sub-filesystem for templates; falling back to disk", "error", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return templateFS
}

// setupUIHandlers creates UI handlers with template renderer and asset resolver.
// In dev mode (services.IsDev=true), templates are loaded from disk for hot reloading.
// In production mode (services.IsDev=false), templates are loaded from embedded FS.
func setupUIHandlers(services RouterServices, staticFS fs.FS) *UIHandlers {
	logger := services.logger()
	templateFS := services.TemplateFS
	if templateFS == nil {
		templateFS = defaultTemplateFS(services.IsDev, logger)
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		Resolver:   httpassets.NewAssetResolver(staticFS, services.IsDev, logger),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create template renderer; dashboard disabled", slog.Any("error", err))
		return nil
	}

	h := &UIHandlers{
		ToolServices:  services.toolServices(),
		T:             tr,
		SecureCookies: services.SecureCookies,
		IsDev:         services.IsDev,
		Logger:        services.Logger,
	}
	if services.Downloads != nil {
		h.Downloads = services.Downloads
	}
	if services.Assistant != nil {
		h.Assistant = services.Assistant
	}
	if services.History != nil {
		h.History = services.History
	}
	return h
}

// staticWithCacheHeaders wraps a static file handler to add appropriate cache headers.
// URLs versioned by the asset resolver are immutable.
func staticWithCacheHeaders(handler http.Handler, isDev bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case httpassets.IsVersioned(r.URL.RawQuery):
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case isDev:
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		default:
			w.Header().Set("Cache-Control", "public, max-age=300")
		}

		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and provides custom 404 handling.
type notFoundHandler struct {
	mux        *http.ServeMux
	uiHandlers *UIHandlers
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Upgrades need the real connection.
	if websocket.IsWebSocketUpgrade(r) {
		h.mux.ServeHTTP(w, r)
		return
	}

	cw := newCaptureWriter(w)
	// Serve the request through the mux, capturing status, headers, and body
	h.mux.ServeHTTP(cw, r)

	// If the mux didn't handle the request (404), use our custom handler
	if cw.status == http.StatusNotFound && !cw.handled() {
		// For missing static assets, preserve the default file server response
		if strings.HasPrefix(r.URL.Path, "/static/") {
			cw.flushTo(w)
			return
		}
		if h.uiHandlers != nil {
			h.uiHandlers.NotFound(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	// Not a 404: write the captured response
	cw.flushTo(w)
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	rw     http.ResponseWriter
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

// handled reports whether a handler produced its own 404 body. The mux's
// default 404 is plain text; ours are JSON or HTML.
func (c *captureWriter) handled() bool {
	ct := c.header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/html")
}

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		slog.Debug("failed to write captured response", "error", err)
	}
}

func registerSkillRoutes(mux *http.ServeMux, h *SkillHandlers) {
	mux.HandleFunc("GET /api/skills", h.ListSkills)
	mux.HandleFunc("GET /api/skills/{skill}", h.GetSkill)
	mux.HandleFunc("GET /api/skills/{skill}/{op}/options", h.ListOptions)
	mux.HandleFunc("POST /api/skills/{skill}/{op}/validate", h.Validate)
	mux.HandleFunc("POST /api/skills/{skill}/{op}/submit", h.Submit)
}

func registerAssistantRoutes(mux *http.ServeMux, h *AssistantHandlers) {
	mux.HandleFunc("POST /api/assistant/parse", h.Parse)
	mux.HandleFunc("GET /api/assistant/conversations/{id}", h.Conversation)
	mux.HandleFunc("GET /api/assistant/intents/{token}", h.Intent)
	mux.HandleFunc("GET /api/assistant/quick-actions", h.QuickActions)
}

// registerUIRoutes delegates to per-area UI route registration functions.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers) {
	registerUIDashboardRoutes(mux, h)
	registerUIToolRoutes(mux, h)
	registerUIAssistantRoutes(mux, h)
}

func registerUIDashboardRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /dashboard", h.Index)
	mux.HandleFunc("GET /history/recent", h.HistoryFragment)
	mux.HandleFunc("GET "+service.DownloadPrefix+"{token}", h.Download)
}

// registerUIToolRoutes wires the skill pages and the old per-tool paths the
// assistant may still name.
func registerUIToolRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET "+skill.RoutePrefix+"{skill}", h.Tool)
	mux.HandleFunc("POST "+skill.RoutePrefix+"{skill}/{op}/validate", h.ToolValidate)
	mux.HandleFunc("POST "+skill.RoutePrefix+"{skill}/{op}/submit", h.ToolSubmit)

	for _, sk := range h.Catalog.All() {
		if sk.LegacyPath == "" || sk.LegacyPath == sk.Route() {
			continue
		}
		mux.Handle("GET "+sk.LegacyPath, LegacyRedirect(sk))
	}
}

func registerUIAssistantRoutes(mux *http.ServeMux, h *UIHandlers) {
	if h.Assistant == nil {
		return
	}
	mux.HandleFunc("POST /assistant/messages", h.AssistantMessage)
	mux.HandleFunc("GET /assistant/conversation", h.AssistantConversation)
	mux.HandleFunc("GET /assistant/quick-actions", h.AssistantQuickActions)
}
