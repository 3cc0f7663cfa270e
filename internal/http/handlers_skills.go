package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/service"
)

// SkillHandlers serves the skill catalog and submissions over JSON.
type SkillHandlers struct {
	ToolServices
	Logger *slog.Logger
}

type operationSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Encoding    skill.Encoding     `json:"encoding"`
	Response    skill.ResponseMode `json:"response"`
	Fields      []skill.Field      `json:"fields"`
}

type skillSummary struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Icon        string                `json:"icon,omitempty"`
	Route       string                `json:"route"`
	Static      []skill.StaticSection `json:"static,omitempty"`
	Operations  []operationSummary    `json:"operations"`
}

func summarize(sk *skill.Skill) skillSummary {
	out := skillSummary{
		ID:          sk.ID,
		Name:        sk.Name,
		Description: sk.Description,
		Category:    sk.Category,
		Icon:        sk.Icon,
		Route:       sk.Route(),
		Static:      sk.Static,
		Operations:  make([]operationSummary, 0, len(sk.Operations)),
	}
	for _, op := range sk.Operations {
		enc := op.Encoding
		if enc == "" {
			enc = skill.EncodingJSON
		}
		out.Operations = append(out.Operations, operationSummary{
			ID:          op.ID,
			Name:        op.Name,
			Description: op.Description,
			Encoding:    enc,
			Response:    op.Response,
			Fields:      op.Fields,
		})
	}
	return out
}

// ListSkills returns the catalog.
func (h *SkillHandlers) ListSkills(w http.ResponseWriter, _ *http.Request) {
	all := h.Catalog.All()
	out := make([]skillSummary, 0, len(all))
	for _, sk := range all {
		out = append(out, summarize(sk))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"skills": out})
}

// GetSkill returns one skill.
func (h *SkillHandlers) GetSkill(w http.ResponseWriter, r *http.Request) {
	sk, ok := h.Catalog.Skill(r.PathValue("skill"))
	if !ok {
		WriteAppError(w, apperrors.NotFound("skill not found"))
		return
	}
	WriteJSON(w, http.StatusOK, summarize(sk))
}

// ListOptions returns the backend-provided select options of an operation.
func (h *SkillHandlers) ListOptions(w http.ResponseWriter, r *http.Request) {
	_, op, ok := h.lookupOperation(r)
	if !ok {
		WriteAppError(w, apperrors.NotFound("skill or operation not found"))
		return
	}
	loaded := h.Options.LoadFor(r.Context(), op)
	if loaded == nil {
		loaded = skill.OptionSet{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"options": loaded})
}

// Validate reports whether the posted parameters are submittable.
func (h *SkillHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	sk, op, ok := h.lookupOperation(r)
	if !ok {
		WriteAppError(w, apperrors.NotFound("skill or operation not found"))
		return
	}
	values, err := h.readValues(w, r, op)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	ctx := r.Context()
	loaded := h.Options.LoadFor(ctx, op)
	ctrl := h.Submissions.Controller(sk, op, r.Header.Get(InstanceHeader))
	errs := op.Validate(values, loaded)
	WriteJSON(w, http.StatusOK, map[string]any{
		"can_submit": !errs.Any() && !ctrl.InFlight(ctx),
		"fields":     errs,
	})
}

// Submit runs one submission. Binary results stream back directly unless
// ?as=link asks for a single-use download link; records and failures are JSON.
func (h *SkillHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	sk, op, ok := h.lookupOperation(r)
	if !ok {
		WriteAppError(w, apperrors.NotFound("skill or operation not found"))
		return
	}
	values, err := h.readValues(w, r, op)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	ctx := r.Context()
	loaded := h.Options.LoadFor(ctx, op)
	cfg, fieldErrs := op.BuildConfig(values, loaded)
	if fieldErrs.Any() {
		WriteAppError(w, fieldErrs)
		return
	}

	instance := strings.TrimSpace(r.Header.Get(InstanceHeader))
	if instance == "" {
		instance = service.NewInstanceID()
	}
	res := h.Submissions.Controller(sk, op, instance).Submit(ctx, cfg)
	if res.Failure != nil {
		WriteFailure(w, res.Failure)
		return
	}
	if res.IsBinary() && r.URL.Query().Get("as") != "link" {
		writeBlob(w, res.Blob)
		return
	}

	outcome, err := h.Results.Handle(ctx, op, cfg, res)
	if err != nil {
		h.logger().ErrorContext(ctx, "prepare result", "skill", sk.ID, "operation", op.ID, "error", err)
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, outcome)
}

// readValues decodes a JSON object or a form post into form values.
func (h *SkillHandlers) readValues(w http.ResponseWriter, r *http.Request, op *skill.Operation) (skill.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return parseToolForm(w, r, op, h.MaxUploadBytes)
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	params := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return skill.NewValues(), apperrors.Validation("request body is too large")
		}
		return skill.NewValues(), apperrors.Validation("request body must be a JSON object")
	}
	return op.ValuesFrom(params), nil
}

func (h *SkillHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
