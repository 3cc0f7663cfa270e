package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/http/ui/viewmodel"
	"github.com/skilldeck/skilldeck/internal/service"
)

// toolMeta returns the page metadata of a skill page.
func toolMeta(sk *skill.Skill) PageMeta {
	return PageMeta{Title: sk.Name + " - Skilldeck", PageTitle: sk.Name, CurrentPage: PageTool}
}

// lookupSkill resolves the {skill} path value.
func (h *UIHandlers) lookupSkill(r *http.Request) (*skill.Skill, bool) {
	if h.Catalog == nil {
		return nil, false
	}
	return h.Catalog.Skill(r.PathValue("skill"))
}

// lookupOperation resolves the {skill} and {op} path values.
func (s ToolServices) lookupOperation(r *http.Request) (*skill.Skill, *skill.Operation, bool) {
	if s.Catalog == nil {
		return nil, nil, false
	}
	sk, ok := s.Catalog.Skill(r.PathValue("skill"))
	if !ok {
		return nil, nil, false
	}
	op, ok := sk.Operation(r.PathValue("op"))
	if !ok {
		return nil, nil, false
	}
	return sk, op, true
}

// Tool serves a skill page. An ?intent= token left by the assistant selects
// the operation and pre-fills the form; otherwise ?op= picks the operation.
func (h *UIHandlers) Tool(w http.ResponseWriter, r *http.Request) {
	sk, ok := h.lookupSkill(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	builder := h.pageData(r, toolMeta(sk)).
		With("Skill", sk)

	if sk.IsStatic() {
		h.renderDashboardPage(w, r, builder.Build())
		return
	}

	op, values, preFilled := h.initialForm(r, sk)
	if op == nil {
		h.NotFound(w, r)
		return
	}

	ctx := r.Context()
	loaded := h.Options.LoadFor(ctx, op)
	ctrl := h.Submissions.Controller(sk, op, service.NewInstanceID())
	inFlight := ctrl.InFlight(ctx)

	builder.
		With("Operation", op).
		With("Tabs", operationTabs(sk, op)).
		WithForm(buildFormView(formViewInput{
			Skill:      sk,
			Op:         op,
			Values:     values,
			Loaded:     loaded,
			InstanceID: ctrl.InstanceID(),
			CanSubmit:  op.CanSubmit(values, loaded) && !inFlight,
			InFlight:   inFlight,
			PreFilled:  preFilled,
		}))

	h.renderDashboardPage(w, r, builder.Build())
}

// initialForm picks the operation and initial values for a page load.
func (h *UIHandlers) initialForm(r *http.Request, sk *skill.Skill) (*skill.Operation, skill.Values, bool) {
	if token := strings.TrimSpace(r.URL.Query().Get(assistant.IntentParam)); token != "" && h.Assistant != nil {
		intent, err := h.Assistant.ConsumeIntent(r.Context(), token)
		switch {
		case err != nil:
			// Expired or already used: open the page without pre-fill.
			h.logger().InfoContext(r.Context(), "navigation intent unavailable", "skill", sk.ID, "error", err)
		case intent.SkillID != sk.ID:
			h.logger().InfoContext(r.Context(), "navigation intent for another skill", "skill", sk.ID, "intent_skill", intent.SkillID)
		default:
			if op, values := sk.ApplyPreFill(intent.PreFill); op != nil {
				return op, values, len(values.Form) > 0
			}
		}
	}

	op, ok := sk.Operation(r.URL.Query().Get("op"))
	if !ok {
		op, ok = sk.DefaultOperation()
	}
	if !ok {
		return nil, skill.NewValues(), false
	}
	return op, skill.NewValues(), false
}

// toolForm is the parsed state of a posted skill form.
type toolForm struct {
	skill    *skill.Skill
	op       *skill.Operation
	values   skill.Values
	loaded   skill.OptionSet
	instance string
}

// parsePostedForm resolves the operation and reads the posted form. Parse
// failures are reported through err with the (possibly partial) form.
func (h *UIHandlers) parsePostedForm(w http.ResponseWriter, r *http.Request) (*toolForm, error) {
	sk, op, ok := h.lookupOperation(r)
	if !ok {
		return nil, apperrors.NotFound("Unknown skill or operation")
	}
	values, err := parseToolForm(w, r, op, h.MaxUploadBytes)
	tf := &toolForm{
		skill:    sk,
		op:       op,
		values:   values,
		loaded:   h.Options.LoadFor(r.Context(), op),
		instance: instanceFrom(r),
	}
	if tf.instance == "" {
		tf.instance = service.NewInstanceID()
	}
	return tf, err
}

// ToolValidate re-evaluates whether the form can be submitted and returns
// the submit button. Field errors are only shown after a submit attempt.
// The page sends file counts here instead of the files themselves.
func (h *UIHandlers) ToolValidate(w http.ResponseWriter, r *http.Request) {
	tf, err := h.parsePostedForm(w, r)
	if tf == nil {
		h.NotFound(w, r)
		return
	}
	if err == nil {
		readFileCounts(r, tf.op, &tf.values)
	}
	ctrl := h.Submissions.Controller(tf.skill, tf.op, tf.instance)
	fv := buildFormView(formViewInput{
		Skill:      tf.skill,
		Op:         tf.op,
		Values:     tf.values,
		Loaded:     tf.loaded,
		InstanceID: tf.instance,
		CanSubmit:  err == nil && ctrl.CanSubmit(r.Context(), tf.values, tf.loaded),
	})
	h.renderFragment(w, r, "submit-button", map[string]any{"Form": fv})
}

// ToolSubmit runs one submission and re-renders the form with its outcome.
// Downloads are announced to the page with a download:start event.
func (h *UIHandlers) ToolSubmit(w http.ResponseWriter, r *http.Request) {
	tf, err := h.parsePostedForm(w, r)
	if tf == nil {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.renderFormError(w, r, tf, err)
		return
	}

	ctx := r.Context()
	cfg, fieldErrs := tf.op.BuildConfig(tf.values, tf.loaded)
	if fieldErrs.Any() {
		h.renderFormError(w, r, tf, fieldErrs)
		return
	}

	ctrl := h.Submissions.Controller(tf.skill, tf.op, tf.instance)
	res := ctrl.Submit(ctx, cfg)
	outcome, err := h.Results.Handle(ctx, tf.op, cfg, res)
	if err != nil {
		h.logger().ErrorContext(ctx, "prepare result", "skill", tf.skill.ID, "operation", tf.op.ID, "error", err)
		h.renderFormError(w, r, tf, apperrors.Internal("could not store the result"))
		return
	}

	if outcome.IsDownload() {
		HTMX(w).Download(outcome.DownloadURL, outcome.Filename)
	}
	if !outcome.Failed() {
		SetHXTrigger(w, "history:refresh", nil)
	}

	data := NewTemplateData(r, toolMeta(tf.skill)).
		WithForm(h.submittedFormView(ctx, tf, nil)).
		WithOutcome(outcome).
		Build()
	h.renderFragment(w, r, "skill-form", data)
}

// renderFormError re-renders the form with field errors and a general message.
func (h *UIHandlers) renderFormError(w http.ResponseWriter, r *http.Request, tf *toolForm, err error) {
	RenderError(ErrorOpts{
		W:        w,
		R:        r,
		Err:      err,
		PageMeta: toolMeta(tf.skill),
		Renderer: func(w http.ResponseWriter, r *http.Request, data any) {
			m, _ := data.(map[string]any)
			errs, _ := m["Errors"].(map[string]string)
			m["Form"] = h.submittedFormView(r.Context(), tf, errs)
			h.renderFragment(w, r, "skill-form", m)
		},
	})
}

// submittedFormView rebuilds the form after a post, keeping the posted
// values and instance id. Uploads are not echoed back.
func (h *UIHandlers) submittedFormView(ctx context.Context, tf *toolForm, errs map[string]string) viewmodel.FormView {
	values := tf.values
	values.Files = nil
	ctrl := h.Submissions.Controller(tf.skill, tf.op, tf.instance)
	return buildFormView(formViewInput{
		Skill:      tf.skill,
		Op:         tf.op,
		Values:     values,
		Loaded:     tf.loaded,
		Errors:     errs,
		InstanceID: tf.instance,
		CanSubmit:  ctrl.CanSubmit(ctx, values, tf.loaded),
	})
}

// LegacyRedirect sends an old dashboard path to the skill's page, keeping
// the query string so intent tokens survive.
func LegacyRedirect(sk *skill.Skill) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := sk.Route()
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		if IsHTMX(r) {
			HTMX(w).Redirect(target)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
