package httpx

import (
	"net/http"

	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// NotFound handles 404 errors.
// For browser requests, it renders an HTML error page.
// For API requests, it returns a JSON error response.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) {
		h.renderBrowserError(w, r, http.StatusNotFound, "The page you're looking for doesn't exist.")
		return
	}
	WriteAppError(w, apperrors.NotFound("not found"))
}

// renderBrowserError renders the standalone error page.
func (h *UIHandlers) renderBrowserError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := map[string]any{
		"Title":       http.StatusText(status) + " - Skilldeck",
		"Code":        status,
		"Message":     message,
		"CurrentPage": PageError,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if h.T == nil {
		http.Error(w, message, status)
		return
	}
	w.WriteHeader(status)
	if err := h.T.RenderError(w, r, data); err != nil {
		h.logger().Error("failed to render error page", "error", err, "status", status)
	}
}
