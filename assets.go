// Package skilldeck provides embedded assets for production builds.
package skilldeck

import "embed"

// In dev mode (IsDev=true), templates and static files are read from disk.
// Otherwise they are served from these embedded filesystems.

//go:embed all:frontend/static
var StaticFS embed.FS

//go:embed all:frontend/templates
var TemplateFS embed.FS

// CatalogFS holds the default skill catalog.
//
//go:embed catalog/skills.yaml
var CatalogFS embed.FS

// CatalogFile is the path of the default catalog inside CatalogFS.
const CatalogFile = "catalog/skills.yaml"
