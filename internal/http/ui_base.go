package httpx

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/http/ui/viewmodel"
	"github.com/skilldeck/skilldeck/internal/service"
)

// SubmissionsService hands out per-form submission controllers.
type SubmissionsService interface {
	Controller(sk *skill.Skill, op *skill.Operation, instanceID string) *service.Controller
}

// ResultsService prepares controller results for display.
type ResultsService interface {
	Handle(ctx context.Context, op *skill.Operation, cfg job.Config, res job.Result) (service.Outcome, error)
}

// DownloadsService serves stored results once.
type DownloadsService interface {
	Take(ctx context.Context, token string) (*job.Blob, error)
}

// OptionsLoader loads backend-provided select options for an operation.
type OptionsLoader interface {
	LoadFor(ctx context.Context, op *skill.Operation) skill.OptionSet
}

// AssistantAPI is the chat surface shared by the widget, the JSON API and the websocket.
type AssistantAPI interface {
	Send(ctx context.Context, conversationID, text, currentPath string) (*assistant.Reply, error)
	Conversation(ctx context.Context, id string) (*assistant.Conversation, error)
	ConsumeIntent(ctx context.Context, token string) (*assistant.NavigationIntent, error)
	QuickActions(ctx context.Context) []assistant.QuickAction
	QuickAction(ctx context.Context, id string) (assistant.QuickAction, bool)
}

// HistoryReader exposes submission history.
type HistoryReader interface {
	Enabled() bool
	Recent(ctx context.Context, f job.SubmissionFilter) ([]*job.Submission, error)
	Stats(ctx context.Context, since time.Time) (*job.SubmissionStats, error)
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ SubmissionsService = (*service.SubmissionService)(nil)
	_ ResultsService     = (*service.ResultHandler)(nil)
	_ DownloadsService   = (*service.DownloadStore)(nil)
	_ OptionsLoader      = (*service.OptionsService)(nil)
	_ AssistantAPI       = (*service.AssistantService)(nil)
	_ HistoryReader      = (*service.HistoryService)(nil)
)

// ToolServices are the dependencies of the submit pipeline, shared by the
// UI and the JSON API.
type ToolServices struct {
	Catalog        *skill.Catalog
	Submissions    SubmissionsService
	Results        ResultsService
	Options        OptionsLoader
	MaxUploadBytes int64
}

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	ToolServices

	T         *TemplateRenderer
	Downloads DownloadsService
	Assistant AssistantAPI
	History   HistoryReader
	// SecureCookies marks the conversation cookie Secure.
	SecureCookies bool
	IsDev         bool // Development mode flag for enhanced error reporting
	Logger        *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// triggerToast sends a standardized HX-Trigger payload for toast notifications.
func triggerToast(w http.ResponseWriter, message, toastType string) {
	if w == nil || strings.TrimSpace(message) == "" {
		return
	}
	HTMX(w).Trigger(EventToast, map[string]any{
		"message": message,
		"type":    strings.TrimSpace(toastType),
	})
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// buildLayout constructs shared layout metadata from the request.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	return viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CurrentPath: r.URL.Path,
		CSRFToken:   GetCSRFToken(r),
	}
}

// basePageData constructs the common page data map.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":       layout.Title,
		"PageTitle":   layout.PageTitle,
		"CurrentPage": layout.CurrentPage,
		"CurrentPath": layout.CurrentPath,
	}
	if layout.CSRFToken != "" {
		data["CSRFToken"] = layout.CSRFToken
	}
	return data
}

// pageData adds the navigation every full page shows to basePageData.
func (h *UIHandlers) pageData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	b := NewTemplateData(r, meta)
	if h.Catalog != nil {
		b.With("Categories", h.Catalog.Categories())
	}
	return b
}

// PageSpec describes a full page: its metadata and an optional fetch that
// fills content data.
type PageSpec struct {
	Meta  PageMeta
	Fetch func(ctx context.Context, data map[string]any) error
}

// Page builds base data, optionally fetches content data, and renders.
func (h *UIHandlers) Page(w http.ResponseWriter, r *http.Request, spec PageSpec) {
	data := h.pageData(r, spec.Meta).Build()
	if spec.Fetch != nil {
		if err := spec.Fetch(r.Context(), data); err != nil {
			h.logger().WarnContext(r.Context(), "page fetch failed", "error", err, "page", spec.Meta.CurrentPage)
			markPageError(data)
		}
	}
	h.renderDashboardPage(w, r, data)
}

func markPageError(data map[string]any) {
	data["Error"] = true
	if _, ok := data["ErrorMessage"]; ok {
		return
	}
	data["ErrorMessage"] = "An unexpected error occurred. Please try again."
}

// renderDashboardPage renders a dashboard page with proper HTMX partial support.
func (h *UIHandlers) renderDashboardPage(w http.ResponseWriter, r *http.Request, data any) {
	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, r, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	// For HTMX requests, render the content plus out-of-band header updates
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})

	layout := extractLayoutInfo(data)

	// Include a <title> element so htmx updates document.title on partial swaps
	if _, err := w.Write([]byte(`<title>` + html.EscapeString(layout.Title) + `</title>`)); err != nil {
		h.logger().Error("failed to write partial document title", "error", err)
		return
	}
	safeTitle := html.EscapeString(layout.PageTitle)
	if _, err := w.Write([]byte(`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` + safeTitle + `</h1>`)); err != nil {
		h.logger().Error("failed to write partial header title", "error", err)
		return
	}

	if err := h.T.RenderContent(w, ContentTemplateFor(layout.CurrentPage), data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
	}
}

// renderFragment renders one named partial, e.g. the result panel.
func (h *UIHandlers) renderFragment(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := h.T.RenderContent(w, name, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, name)
	}
}

func extractLayoutInfo(data any) viewmodel.Layout {
	switch v := data.(type) {
	case viewmodel.LayoutProvider:
		if l := v.LayoutData(); l != nil {
			return *l
		}
	case viewmodel.Layout:
		return v
	case map[string]any:
		layout := viewmodel.Layout{}
		layout.Title, _ = v["Title"].(string)
		layout.PageTitle, _ = v["PageTitle"].(string)
		layout.CurrentPage, _ = v["CurrentPage"].(string)
		layout.CurrentPath, _ = v["CurrentPath"].(string)
		return layout
	}
	return viewmodel.Layout{}
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		if _, writeErr := w.Write([]byte(`<div class="dev-error"><h2>Template Rendering Error</h2>` +
			`<p><strong>Context:</strong> ` + html.EscapeString(context) + `</p>` +
			`<p><strong>Path:</strong> ` + html.EscapeString(r.URL.Path) + `</p>` +
			`<pre>` + html.EscapeString(err.Error()) + `</pre></div>`)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}
