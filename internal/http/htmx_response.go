package httpx

import (
	"net/http"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
)

// HTMXResponse provides a fluent API for building HTMX responses.
type HTMXResponse struct {
	w http.ResponseWriter
}

// HTMX creates a new HTMXResponse for fluent response building.
func HTMX(w http.ResponseWriter) *HTMXResponse {
	return &HTMXResponse{w: w}
}

// Redirect sets HX-Redirect and answers 204. The handler should return
// immediately afterwards.
func (h *HTMXResponse) Redirect(url string) {
	SetHXRedirect(h.w, url)
	h.w.WriteHeader(http.StatusNoContent)
}

// Trigger adds a client-side event with optional payload.
func (h *HTMXResponse) Trigger(event string, payload any) *HTMXResponse {
	SetHXTrigger(h.w, event, payload)
	return h
}

// PushURL pushes the given URL into the browser history for the new content.
func (h *HTMXResponse) PushURL(url string) *HTMXResponse {
	SetHXPushURL(h.w, url)
	return h
}

// Navigate asks the assistant widget to open nav.URL after nav.DelayMS.
func (h *HTMXResponse) Navigate(nav *assistant.Navigation) *HTMXResponse {
	if nav == nil {
		return h
	}
	return h.Trigger(EventNavigate, map[string]any{
		"url":      nav.URL,
		"skill_id": nav.SkillID,
		"delay_ms": nav.DelayMS,
	})
}

// Download asks the page to fetch url as filename once the fragment is swapped in.
func (h *HTMXResponse) Download(url, filename string) *HTMXResponse {
	return h.Trigger(EventDownload, map[string]string{"url": url, "filename": filename})
}
