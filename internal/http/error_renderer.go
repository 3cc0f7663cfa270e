package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

const errMsgFixBelow = "Please fix the errors below."

// ErrorRenderer is a function that renders an error template with the given data.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, data any)

// ErrorOpts contains all options needed to render an error response.
type ErrorOpts struct {
	W   http.ResponseWriter
	R   *http.Request
	Err error // optional when only FieldErrors are set
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	// Renderer is typically h.renderDashboardPage or a fragment renderer.
	Renderer ErrorRenderer
	PageMeta PageMeta
	// Data is merged into the template data (form values, loaded options, ...).
	Data map[string]any
	// StatusCode defaults to 200 so htmx swaps the fragment.
	StatusCode int
	// ShowToast sends a showToast HX-Trigger with the error message.
	ShowToast bool
}

// DetermineErrorStatus returns the status a browser response should carry
// for err. Zero means "use the default", which is 200 for htmx fragments.
func DetermineErrorStatus(err error) int {
	if err == nil {
		return 0
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeBusy, apperrors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return 0
	}
}

// RenderError renders an error response: field errors are attached to the
// form and the general message is shown above it.
func RenderError(opts ErrorOpts) {
	if opts.Renderer == nil {
		http.Error(opts.W, "misconfigured error renderer", http.StatusInternalServerError)
		return
	}

	builder := NewTemplateData(opts.R, opts.PageMeta)

	generalError := processError(opts.Err, &opts.FieldErrors)
	if len(opts.FieldErrors) > 0 {
		builder.WithFieldErrors(opts.FieldErrors)
	}
	if generalError != "" {
		builder.WithError(generalError)
	} else if len(opts.FieldErrors) > 0 {
		builder.WithError(errMsgFixBelow)
	}

	for k, v := range opts.Data {
		builder.With(k, v)
	}

	if opts.ShowToast && generalError != "" {
		triggerToast(opts.W, generalError, "error")
	}
	if opts.StatusCode != 0 {
		opts.W.WriteHeader(opts.StatusCode)
	}

	opts.Renderer(opts.W, opts.R, builder.Build())
}

// processError turns err into a user-facing message, moving per-field
// details into fieldErrors. Returns "" for a nil error.
func processError(err error, fieldErrors *map[string]string) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "Request was canceled."
	}

	var fe skill.FieldErrors
	if errors.As(err, &fe) {
		mergeFieldErrors(fieldErrors, fe)
		return errMsgFixBelow
	}

	var failure *job.Failure
	if errors.As(err, &failure) {
		if failure.Message != "" {
			return failure.Message
		}
		return job.DefaultMessage(failure.Kind)
	}

	if field := apperrors.GetField(err); field != "" {
		mergeFieldErrors(fieldErrors, map[string]string{field: apperrors.UserMessage(err, "Invalid value.")})
		return errMsgFixBelow
	}

	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInternal, "":
		return "An error occurred. Please try again."
	default:
		return apperrors.UserMessage(err, "An error occurred. Please try again.")
	}
}

func mergeFieldErrors(dst *map[string]string, src map[string]string) {
	if dst == nil {
		return
	}
	if *dst == nil {
		*dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}
