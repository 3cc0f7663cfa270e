// Package skill holds the declarative catalog of dashboard tools. Every tool
// page, its operations and their form fields are described as data; one
// generic form engine validates, assembles and names submissions for all of them.
package skill

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoutePrefix is the path prefix of tool pages.
const RoutePrefix = "/tools/"

// HomeContext is the assistant context used outside any tool page.
const HomeContext = "home"

// StaticSection is a block of reference content on a skill without operations.
type StaticSection struct {
	Heading  string   `yaml:"heading"  json:"heading"`
	Body     string   `yaml:"body"     json:"body"`
	Swatches []string `yaml:"swatches" json:"swatches,omitempty"`
}

// Skill is one dashboard tool.
type Skill struct {
	ID          string `yaml:"id"          json:"id"`
	Name        string `yaml:"name"        json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category"    json:"category"`
	Icon        string `yaml:"icon"        json:"icon,omitempty"`
	// LegacyPath is the path assistant navigate actions use for this tool.
	LegacyPath string `yaml:"legacy_path" json:"legacy_path"`
	// AssistantContext is sent with chat messages typed on this tool's page.
	AssistantContext string `yaml:"assistant_context" json:"assistant_context,omitempty"`
	// VariantKey is the pre-fill key that selects an operation (e.g. "template").
	VariantKey string          `yaml:"variant_key" json:"variant_key,omitempty"`
	Static     []StaticSection `yaml:"static"      json:"static,omitempty"`
	Operations []Operation     `yaml:"operations"  json:"operations"`
}

// Route is the canonical page path.
func (s *Skill) Route() string { return RoutePrefix + s.ID }

// Operation returns the operation with id, or the first one when id is empty.
func (s *Skill) Operation(id string) (*Operation, bool) {
	if id == "" {
		return s.DefaultOperation()
	}
	for i := range s.Operations {
		if s.Operations[i].ID == id {
			return &s.Operations[i], true
		}
	}
	return nil, false
}

// DefaultOperation returns the first operation, if any.
func (s *Skill) DefaultOperation() (*Operation, bool) {
	if len(s.Operations) == 0 {
		return nil, false
	}
	return &s.Operations[0], true
}

// IsStatic reports whether the skill is a reference page without jobs.
func (s *Skill) IsStatic() bool { return len(s.Operations) == 0 }

// Category groups skills on the dashboard.
type Category struct {
	Name   string
	Skills []*Skill
}

// Catalog is the validated set of skills.
type Catalog struct {
	Skills []Skill `yaml:"skills"`

	byID     map[string]*Skill
	byLegacy map[string]*Skill
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file from fsys.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", name, err)
	}
	return Parse(data)
}

func (c *Catalog) index() error {
	if len(c.Skills) == 0 {
		return errors.New("catalog has no skills")
	}
	c.byID = make(map[string]*Skill, len(c.Skills))
	c.byLegacy = make(map[string]*Skill, len(c.Skills))
	var errs []error
	for i := range c.Skills {
		s := &c.Skills[i]
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("skill %d: missing id", i))
			continue
		}
		if _, dup := c.byID[s.ID]; dup {
			errs = append(errs, fmt.Errorf("skill %q: duplicate id", s.ID))
			continue
		}
		if s.LegacyPath == "" {
			s.LegacyPath = "/dashboard-" + s.ID
		}
		if s.AssistantContext == "" {
			s.AssistantContext = HomeContext
		}
		if other, dup := c.byLegacy[s.LegacyPath]; dup {
			errs = append(errs, fmt.Errorf("skill %q: legacy path %q already used by %q", s.ID, s.LegacyPath, other.ID))
			continue
		}
		if !strings.HasPrefix(s.LegacyPath, "/") || strings.ContainsAny(s.LegacyPath, "{} ") {
			errs = append(errs, fmt.Errorf("skill %q: invalid legacy path %q", s.ID, s.LegacyPath))
			continue
		}
		c.byID[s.ID] = s
		c.byLegacy[s.LegacyPath] = s
		errs = append(errs, s.validate()...)
	}
	return errors.Join(errs...)
}

func (s *Skill) validate() []error {
	var errs []error
	seen := map[string]bool{}
	for i := range s.Operations {
		op := &s.Operations[i]
		switch {
		case op.ID == "":
			errs = append(errs, fmt.Errorf("skill %q: operation %d missing id", s.ID, i))
		case seen[op.ID]:
			errs = append(errs, fmt.Errorf("skill %q: duplicate operation %q", s.ID, op.ID))
		case op.Endpoint == "":
			errs = append(errs, fmt.Errorf("skill %q operation %q: missing endpoint", s.ID, op.ID))
		}
		seen[op.ID] = true
		if err := op.compile(); err != nil {
			errs = append(errs, fmt.Errorf("skill %q operation %q: %w", s.ID, op.ID, err))
		}
		if op.Encoding != EncodingJSON && op.Encoding != EncodingMultipart {
			errs = append(errs, fmt.Errorf("skill %q operation %q: unknown encoding %q", s.ID, op.ID, op.Encoding))
		}
		switch op.Response {
		case ResponseAuto, ResponseBinary, ResponseRecord:
		default:
			errs = append(errs, fmt.Errorf("skill %q operation %q: unknown response %q", s.ID, op.ID, op.Response))
		}
		for _, f := range op.Fields {
			errs = append(errs, validateField(s.ID, op, f)...)
		}
	}
	return errs
}

func validateField(skillID string, op *Operation, f Field) []error {
	var errs []error
	where := fmt.Sprintf("skill %q operation %q field %q", skillID, op.ID, f.Name)
	if f.Name == "" {
		errs = append(errs, fmt.Errorf("skill %q operation %q: field missing name", skillID, op.ID))
	}
	if !slices.Contains(knownKinds, f.Kind) {
		errs = append(errs, fmt.Errorf("%s: unknown kind %q", where, f.Kind))
	}
	if f.IsFile() && op.Encoding != EncodingMultipart {
		errs = append(errs, fmt.Errorf("%s: uploads need multipart encoding", where))
	}
	if op.Encoding == EncodingMultipart && !f.IsFile() {
		if f.Kind == KindGroup || f.Kind == KindJSON {
			errs = append(errs, fmt.Errorf("%s: %s fields cannot be sent as multipart", where, f.Kind))
		}
		for _, p := range f.Targets() {
			if strings.Contains(p, ".") {
				errs = append(errs, fmt.Errorf("%s: nested path %q cannot be sent as multipart", where, p))
			}
		}
	}
	if f.Kind == KindGroup && len(f.Subfields) == 0 {
		errs = append(errs, fmt.Errorf("%s: group without fields", where))
	}
	if f.OptionsFrom != nil && (f.OptionsFrom.Endpoint == "" || f.OptionsFrom.Expr == "") {
		errs = append(errs, fmt.Errorf("%s: options_from needs endpoint and expr", where))
	}
	return errs
}

// Skill returns the skill with id.
func (c *Catalog) Skill(id string) (*Skill, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// All returns the skills in catalog order.
func (c *Catalog) All() []*Skill {
	out := make([]*Skill, 0, len(c.Skills))
	for i := range c.Skills {
		out = append(out, &c.Skills[i])
	}
	return out
}

// Categories groups skills by category in first-seen order.
func (c *Catalog) Categories() []Category {
	var cats []Category
	idx := map[string]int{}
	for _, s := range c.All() {
		i, ok := idx[s.Category]
		if !ok {
			i = len(cats)
			idx[s.Category] = i
			cats = append(cats, Category{Name: s.Category})
		}
		cats[i].Skills = append(cats[i].Skills, s)
	}
	return cats
}

// ResolveTarget maps a navigation target to a skill. Both the canonical route
// and the legacy path are accepted; query strings and fragments are ignored.
// Anything else, including absolute URLs, is rejected.
func (c *Catalog) ResolveTarget(target string) (*Skill, bool) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || u.Scheme != "" || u.Host != "" {
		return nil, false
	}
	p := strings.TrimRight(u.Path, "/")
	if s, ok := c.byLegacy[p]; ok {
		return s, true
	}
	if id, ok := strings.CutPrefix(p, RoutePrefix); ok && !strings.Contains(id, "/") {
		return c.Skill(id)
	}
	return nil, false
}

// ContextFor returns the assistant context for the page at path.
func (c *Catalog) ContextFor(path string) string {
	if s, ok := c.ResolveTarget(path); ok {
		return s.AssistantContext
	}
	// Operation sub-routes such as /tools/pdf/merge still belong to the skill.
	if rest, ok := strings.CutPrefix(path, RoutePrefix); ok {
		id, _, _ := strings.Cut(rest, "/")
		if s, ok := c.Skill(id); ok {
			return s.AssistantContext
		}
	}
	return HomeContext
}
