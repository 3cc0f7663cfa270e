package httpx

import (
	"net/http"

	"github.com/skilldeck/skilldeck/internal/http/ui/viewmodel"
	"github.com/skilldeck/skilldeck/internal/service"
)

// TemplateDataBuilder assembles the data map handed to page and fragment
// templates.
type TemplateDataBuilder struct {
	data map[string]any
}

// NewTemplateData starts from basePageData for r.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{data: basePageData(r, meta)}
}

// WithError sets the message shown above the form.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// WithFieldErrors attaches per-field messages. Empty maps are ignored.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// WithForm sets the skill form the "skill-form" fragment renders.
func (b *TemplateDataBuilder) WithForm(fv viewmodel.FormView) *TemplateDataBuilder {
	b.data["Form"] = fv
	return b
}

// WithOutcome sets the result panel shown under the form.
func (b *TemplateDataBuilder) WithOutcome(o service.Outcome) *TemplateDataBuilder {
	b.data["Outcome"] = o
	return b
}

func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}
