package skill

import (
	"fmt"
	"maps"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// Encoding is how a submission body is sent to the backend.
type Encoding string

const (
	EncodingJSON      Encoding = "json"
	EncodingMultipart Encoding = "multipart"
)

// ResponseMode says how a 2xx body is interpreted.
type ResponseMode string

const (
	// ResponseBinary treats every 2xx body as a downloadable file.
	ResponseBinary ResponseMode = "binary"
	// ResponseRecord decodes every 2xx body as a JSON object.
	ResponseRecord ResponseMode = "record"
	// ResponseAuto decides from the Content-Type header.
	ResponseAuto ResponseMode = "auto"
)

// DefaultFailureMessage is used when neither the backend nor the catalog supply one.
const DefaultFailureMessage = "Request failed"

// DisplayField renders one row of a record result.
type DisplayField struct {
	Label string `yaml:"label" json:"label"`
	// Expr is a JMESPath expression evaluated against the record.
	Expr string `yaml:"expr" json:"expr"`
}

// Operation is one submittable job of a skill. Skills with template pickers
// expose one operation per template.
type Operation struct {
	ID             string         `yaml:"id"              json:"id"`
	Name           string         `yaml:"name"            json:"name"`
	Description    string         `yaml:"description"     json:"description,omitempty"`
	Icon           string         `yaml:"icon"            json:"icon,omitempty"`
	Method         string         `yaml:"method"          json:"method"`
	Endpoint       string         `yaml:"endpoint"        json:"endpoint"`
	Encoding       Encoding       `yaml:"encoding"        json:"encoding"`
	Response       ResponseMode   `yaml:"response"        json:"response"`
	Params         map[string]any `yaml:"params"          json:"params,omitempty"`
	Fields         []Field        `yaml:"fields"          json:"fields"`
	Filename       string         `yaml:"filename"        json:"filename,omitempty"`
	FailureMessage string         `yaml:"failure_message" json:"failure_message,omitempty"`
	SuccessMessage string         `yaml:"success_message" json:"success_message,omitempty"`
	SubmitLabel    string         `yaml:"submit_label"    json:"submit_label,omitempty"`
	Display        []DisplayField `yaml:"display"         json:"display,omitempty"`

	filename *template.Template
	success  *template.Template
}

// Field returns the named field.
func (o *Operation) Field(name string) (Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Failure returns the generic message for a failed request.
func (o *Operation) Failure() string {
	if o.FailureMessage != "" {
		return o.FailureMessage
	}
	return DefaultFailureMessage
}

// Validate returns field errors for the current form state. It never fails.
func (o *Operation) Validate(v Values, loaded OptionSet) FieldErrors {
	errs := FieldErrors{}
	for _, f := range o.Fields {
		if msg := f.check(v, loaded); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

// CanSubmit reports whether all required inputs are present and well formed.
// It is a pure function of the form state.
func (o *Operation) CanSubmit(v Values, loaded OptionSet) bool {
	return !o.Validate(v, loaded).Any()
}

// BuildConfig assembles the job configuration from the form state. Field
// errors are returned instead of a config when the form is not submittable.
// Only uploads that were actually sent count toward file minimums here.
func (o *Operation) BuildConfig(v Values, loaded OptionSet) (job.Config, FieldErrors) {
	v.FileCounts = nil
	if errs := o.Validate(v, loaded); errs.Any() {
		return job.Config{}, errs
	}

	cfg := job.NewConfig()
	for k, val := range o.Params {
		cfg.Params[k] = cloneValue(val)
	}
	for _, f := range o.Fields {
		if f.IsFile() {
			for _, file := range v.Files[f.Name] {
				file.Field = f.Name
				cfg.Files = append(cfg.Files, file)
			}
			continue
		}
		val, ok := f.value(v)
		if !ok {
			continue
		}
		for _, p := range f.Targets() {
			cfg.Set(p, val)
		}
		if f.Kind == KindSelect {
			cfg.Labels[f.Name] = labelFor(f.optionsFor(loaded), f.raw(v))
		}
	}
	return cfg, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := maps.Clone(t)
		for k, inner := range out {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// filenameData is the dot value of filename templates.
type filenameData struct {
	cfg job.Config
	now time.Time
}

// Param renders the parameter at path as text.
func (d filenameData) Param(path string) string {
	v, ok := d.cfg.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Label returns the display label chosen for a select field.
func (d filenameData) Label(field string) string { return d.cfg.Labels[field] }

// File returns the name of the first uploaded file.
func (d filenameData) File() string {
	f, _ := d.cfg.FirstFile()
	return f.Name
}

// UnixMS returns the submission time in epoch milliseconds.
func (d filenameData) UnixMS() int64 { return d.now.UnixMilli() }

var filenameFuncs = template.FuncMap{
	"underscore": func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), " ", "_") },
	"lower":      strings.ToLower,
}

func (o *Operation) compile() error {
	if o.Method == "" {
		o.Method = http.MethodPost
	}
	o.Method = strings.ToUpper(o.Method)
	if o.Encoding == "" {
		o.Encoding = EncodingJSON
		for _, f := range o.Fields {
			if f.IsFile() {
				o.Encoding = EncodingMultipart
				break
			}
		}
	}
	if o.Response == "" {
		o.Response = ResponseAuto
	}
	var err error
	if o.filename, err = parseRule(o.ID+".filename", o.Filename); err != nil {
		return fmt.Errorf("filename rule: %w", err)
	}
	if o.success, err = parseRule(o.ID+".success", o.SuccessMessage); err != nil {
		return fmt.Errorf("success message: %w", err)
	}
	return nil
}

func parseRule(name, text string) (*template.Template, error) {
	if text == "" {
		return nil, nil
	}
	return template.New(name).Funcs(filenameFuncs).Option("missingkey=zero").Parse(text)
}

func render(t *template.Template, cfg job.Config, now time.Time) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	if err := t.Execute(&b, filenameData{cfg: cfg, now: now}); err != nil {
		return ""
	}
	return b.String()
}

// SuggestFilename renders the operation's filename rule for cfg. It returns ""
// when the operation has no rule or the rule renders blank.
func (o *Operation) SuggestFilename(cfg job.Config, now time.Time) string {
	return SanitizeFilename(render(o.filename, cfg, now))
}

// Success renders the confirmation shown after a successful submission.
func (o *Operation) Success(cfg job.Config) string {
	if msg := render(o.success, cfg, time.Now()); msg != "" {
		return msg
	}
	return "Done!"
}

// SanitizeFilename strips path separators and control characters.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f || r == '"':
			return -1
		default:
			return r
		}
	}, name)
	return strings.Trim(name, ". ")
}
