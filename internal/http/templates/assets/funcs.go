package assets

import (
	"html/template"

	httpassets "github.com/skilldeck/skilldeck/internal/http/assets"
)

// Funcs returns template helpers for asset resolution.
func Funcs(resolver *httpassets.AssetResolver) template.FuncMap {
	return template.FuncMap{
		"asset": resolver.Resolve,
	}
}
