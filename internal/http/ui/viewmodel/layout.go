// Package viewmodel holds the structs templates render.
package viewmodel

// Layout captures shared chrome metadata (titles, navigation state).
type Layout struct {
	Title       string
	PageTitle   string
	CurrentPage string
	CurrentPath string
	CSRFToken   string
}

// LayoutProvider exposes layout metadata for renderer utilities.
type LayoutProvider interface {
	LayoutData() *Layout
}
