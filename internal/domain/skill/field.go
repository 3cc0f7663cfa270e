package skill

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// FieldKind selects how a form input is rendered, validated and encoded.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindNumber   FieldKind = "number"
	KindSelect   FieldKind = "select"
	KindBool     FieldKind = "bool"
	KindFile     FieldKind = "file"
	KindFiles    FieldKind = "files"
	// KindLines is a textarea split on newlines with blank lines dropped.
	KindLines FieldKind = "lines"
	// KindCSV is a text input split on commas.
	KindCSV FieldKind = "csv"
	// KindJSON is a textarea holding a JSON document.
	KindJSON FieldKind = "json"
	// KindGroup is a repeatable row of subfields, submitted as a list of objects.
	KindGroup FieldKind = "group"
)

var knownKinds = []FieldKind{
	KindText, KindTextarea, KindNumber, KindSelect, KindBool,
	KindFile, KindFiles, KindLines, KindCSV, KindJSON, KindGroup,
}

// Option is one choice of a select field.
type Option struct {
	Value       string `yaml:"value"       json:"value"`
	Label       string `yaml:"label"       json:"label"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// OptionsSource loads select options from the backend: Endpoint is fetched with
// GET and Expr projects the document into a list of {value, label} objects.
type OptionsSource struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Expr     string `yaml:"expr"     json:"expr"`
}

// Field describes one form input.
type Field struct {
	Name        string         `yaml:"name"         json:"name"`
	Label       string         `yaml:"label"        json:"label"`
	Kind        FieldKind      `yaml:"kind"         json:"kind"`
	Required    bool           `yaml:"required"     json:"required,omitempty"`
	MinFiles    int            `yaml:"min_files"    json:"min_files,omitempty"`
	Accept      string         `yaml:"accept"       json:"accept,omitempty"`
	Options     []Option       `yaml:"options"      json:"options,omitempty"`
	OptionsFrom *OptionsSource `yaml:"options_from" json:"options_from,omitempty"`
	Default     string         `yaml:"default"      json:"default,omitempty"`
	Placeholder string         `yaml:"placeholder"  json:"placeholder,omitempty"`
	Help        string         `yaml:"help"         json:"help,omitempty"`
	Min         *float64       `yaml:"min"          json:"min,omitempty"`
	Max         *float64       `yaml:"max"          json:"max,omitempty"`
	// Paths are the dotted parameter paths receiving the value. Defaults to Name.
	Paths []string `yaml:"paths" json:"paths,omitempty"`
	// Aliases are extra keys accepted from assistant pre-fill.
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
	// OmitEmpty leaves the parameter out entirely when the input is blank.
	OmitEmpty bool    `yaml:"omit_empty" json:"omit_empty,omitempty"`
	Subfields []Field `yaml:"fields"     json:"fields,omitempty"`
}

// Targets returns the parameter paths the field writes to.
func (f Field) Targets() []string {
	if len(f.Paths) > 0 {
		return f.Paths
	}
	return []string{f.Name}
}

// IsFile reports whether the field carries uploads.
func (f Field) IsFile() bool { return f.Kind == KindFile || f.Kind == KindFiles }

// Matches reports whether key names this field directly or via an alias.
func (f Field) Matches(key string) bool {
	return f.Name == key || slices.Contains(f.Aliases, key)
}

func (f Field) minFiles() int {
	switch {
	case f.MinFiles > 0:
		return f.MinFiles
	case f.Required:
		return 1
	default:
		return 0
	}
}

// Values is the raw state of a form: text inputs keyed by field name (group
// subfields use "group.sub" keys with one value per row) and uploads keyed by
// field name. FileCounts holds how many files the browser has selected for a
// field when the uploads themselves were not sent, as in a validation round
// trip.
type Values struct {
	Form       url.Values
	Files      map[string][]job.File
	FileCounts map[string]int
}

// NewValues returns an empty value set.
func NewValues() Values {
	return Values{Form: url.Values{}, Files: map[string][]job.File{}}
}

// Get returns the first value for name, trimmed.
func (v Values) Get(name string) string {
	if v.Form == nil {
		return ""
	}
	return strings.TrimSpace(v.Form.Get(name))
}

// Set replaces the value for name.
func (v *Values) Set(name, value string) {
	if v.Form == nil {
		v.Form = url.Values{}
	}
	v.Form.Set(name, value)
}

// AddFile appends an upload to the named field.
func (v *Values) AddFile(name string, f job.File) {
	if v.Files == nil {
		v.Files = map[string][]job.File{}
	}
	v.Files[name] = append(v.Files[name], f)
}

// SetFileCount records n selected files for name without their contents.
func (v *Values) SetFileCount(name string, n int) {
	if v.FileCounts == nil {
		v.FileCounts = map[string]int{}
	}
	v.FileCounts[name] = n
}

// FileCount returns the number of uploads for name, or the declared count
// when that is larger.
func (v Values) FileCount(name string) int {
	return max(len(v.Files[name]), v.FileCounts[name])
}

// FieldErrors maps field names to user-facing messages.
type FieldErrors map[string]string

// Any reports whether at least one error is present.
func (e FieldErrors) Any() bool { return len(e) > 0 }

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// OptionSet supplies dynamically loaded options keyed by field name.
type OptionSet map[string][]Option

// optionsFor returns the static options or the loaded ones.
func (f Field) optionsFor(loaded OptionSet) []Option {
	if len(f.Options) > 0 {
		return f.Options
	}
	return loaded[f.Name]
}

// labelFor returns the display label of value, or value itself.
func labelFor(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			if o.Label != "" {
				return o.Label
			}
			return o.Value
		}
	}
	return value
}

// raw returns the text value with the default applied.
func (f Field) raw(v Values) string {
	s := v.Get(f.Name)
	if s == "" {
		s = f.Default
	}
	return s
}

// check validates one field and returns a message, or "" if valid.
func (f Field) check(v Values, loaded OptionSet) string {
	switch f.Kind {
	case KindFile, KindFiles:
		n := v.FileCount(f.Name)
		if need := f.minFiles(); n < need {
			if need == 1 {
				return "Please select a file"
			}
			return fmt.Sprintf("Please select at least %d files", need)
		}
		return ""
	case KindGroup:
		rows := f.rows(v)
		if f.Required && len(rows) == 0 {
			return "Add at least one entry"
		}
		return ""
	case KindLines, KindCSV:
		if f.Required && len(f.list(v)) == 0 {
			return "This field is required"
		}
		return ""
	}

	s := f.raw(v)
	if s == "" {
		if f.Required {
			return "This field is required"
		}
		return ""
	}

	switch f.Kind {
	case KindNumber:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "Must be a number"
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("Must be at least %s", strconv.FormatFloat(*f.Min, 'f', -1, 64))
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("Must be at most %s", strconv.FormatFloat(*f.Max, 'f', -1, 64))
		}
	case KindJSON:
		if !json.Valid([]byte(s)) {
			return "Invalid JSON data"
		}
	case KindSelect:
		opts := f.optionsFor(loaded)
		if len(opts) > 0 && !slices.ContainsFunc(opts, func(o Option) bool { return o.Value == s }) {
			return "Choose one of the listed options"
		}
	}
	return ""
}

// value converts the raw input into the parameter value. ok is false when the
// parameter should be omitted.
func (f Field) value(v Values) (any, bool) {
	switch f.Kind {
	case KindLines, KindCSV:
		list := f.list(v)
		if len(list) == 0 && f.OmitEmpty {
			return nil, false
		}
		return list, true
	case KindGroup:
		rows := f.rows(v)
		if len(rows) == 0 && f.OmitEmpty {
			return nil, false
		}
		return rows, true
	case KindBool:
		switch strings.ToLower(f.raw(v)) {
		case "on", "true", "1", "yes":
			return true, true
		default:
			return false, true
		}
	}

	s := f.raw(v)
	if s == "" && f.OmitEmpty {
		return nil, false
	}
	switch f.Kind {
	case KindNumber:
		if s == "" {
			return nil, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		n, _ := strconv.ParseFloat(s, 64)
		return n, true
	case KindJSON:
		if s == "" {
			return nil, false
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return s, true
	}
}

func (f Field) list(v Values) []string {
	s := f.raw(v)
	sep := "\n"
	if f.Kind == KindCSV {
		sep = ","
	}
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// rows zips the per-subfield value lists into objects, dropping blank rows.
func (f Field) rows(v Values) []map[string]any {
	width := 0
	for _, sub := range f.Subfields {
		width = max(width, len(v.Form[f.Name+"."+sub.Name]))
	}
	rows := make([]map[string]any, 0, width)
	for i := range width {
		row := make(map[string]any, len(f.Subfields))
		blank := true
		for _, sub := range f.Subfields {
			vals := v.Form[f.Name+"."+sub.Name]
			s := ""
			if i < len(vals) {
				s = strings.TrimSpace(vals[i])
			}
			if s != "" {
				blank = false
			}
			row[sub.Name] = s
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}
