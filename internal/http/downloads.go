package httpx

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// Download serves a generated file once. A second request for the same
// token is a 404.
func (h *UIHandlers) Download(w http.ResponseWriter, r *http.Request) {
	if h.Downloads == nil {
		h.NotFound(w, r)
		return
	}
	blob, err := h.Downloads.Take(r.Context(), r.PathValue("token"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.renderBrowserError(w, r, http.StatusNotFound, "This download has expired or was already used.")
			return
		}
		h.logger().ErrorContext(r.Context(), "take download", "error", err)
		h.renderBrowserError(w, r, http.StatusInternalServerError, "The download could not be retrieved.")
		return
	}
	writeBlob(w, blob)
}

// writeBlob sends blob as an attachment.
func writeBlob(w http.ResponseWriter, blob *job.Blob) {
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.Itoa(len(blob.Data)))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	if blob.Filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Filename}))
	} else {
		h.Set("Content-Disposition", "attachment")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
