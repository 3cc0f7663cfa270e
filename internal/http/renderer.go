package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	httpassets "github.com/skilldeck/skilldeck/internal/http/assets"
	assetfuncs "github.com/skilldeck/skilldeck/internal/http/templates/assets"
	corefuncs "github.com/skilldeck/skilldeck/internal/http/templates/core"
)

// templatePatterns are parsed from the template FS in this order; later
// files may use blocks defined by earlier ones.
var templatePatterns = []string{"*.tmpl", "pages/*.tmpl", "partials/*.tmpl"}

// ErrUnknownTemplate is returned when a named template was never parsed.
var ErrUnknownTemplate = errors.New("unknown template")

// TemplateRenderer renders the dashboard's pages and htmx fragments.
type TemplateRenderer struct {
	t        *template.Template
	resolver *httpassets.AssetResolver
	logger   *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS                     // required
	Resolver   *httpassets.AssetResolver // fingerprints static asset URLs; optional
	Logger     *slog.Logger
}

// NewTemplateRenderer parses every template once at startup.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	r := &TemplateRenderer{resolver: cfg.Resolver, logger: cfg.Logger}

	// renderSection executes templates from the finished set, so the func map
	// captures a pointer that is filled in after parsing.
	var root *template.Template
	funcs := template.FuncMap{}
	for _, src := range []template.FuncMap{
		corefuncs.Funcs(corefuncs.Deps{Template: &root, ContentTemplateFor: ContentTemplateFor}),
		assetfuncs.Funcs(r.resolver),
	} {
		for k, v := range src {
			funcs[k] = v
		}
	}

	root, err := template.New("root").Funcs(funcs).ParseFS(cfg.TemplateFS, templatePatterns...)
	if err != nil {
		r.log().Error("template parsing failed", slog.Any("error", err))
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.t = root
	return r, nil
}

// RenderFull renders a page inside the layout.
func (r *TemplateRenderer) RenderFull(w http.ResponseWriter, _ *http.Request, data any) error {
	return r.execute(w, "layout", data)
}

// RenderContent renders one named template, such as a page body or a
// partial swapped in by htmx.
func (r *TemplateRenderer) RenderContent(w http.ResponseWriter, name string, data any) error {
	if !r.Has(name) {
		return fmt.Errorf("%w %q", ErrUnknownTemplate, name)
	}
	return r.execute(w, name, data)
}

// RenderError renders the standalone error page.
func (r *TemplateRenderer) RenderError(w http.ResponseWriter, _ *http.Request, data any) error {
	return r.execute(w, "error-layout", data)
}

// Has reports whether a template with the given name was parsed.
func (r *TemplateRenderer) Has(name string) bool {
	return r != nil && r.t != nil && r.t.Lookup(name) != nil
}

// execute renders into a buffer first so a failing template never leaves
// half a page on the wire.
func (r *TemplateRenderer) execute(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.log().Error("template execution failed", slog.String("template", name), slog.Any("error", err))
		return err
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if _, err := buf.WriteTo(w); err != nil {
		r.log().Warn("write rendered template", slog.String("template", name), slog.Any("error", err))
		return err
	}
	return nil
}

func (r *TemplateRenderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
