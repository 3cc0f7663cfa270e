// Package job models one remote skill invocation: the request configuration
// assembled from a form and the tagged result the controller hands back.
package job

import (
	"strings"
)

// File is one uploaded document carried as a multipart part.
type File struct {
	// Field is the multipart part name the backend expects (file, files).
	Field       string `json:"field"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the payload length in bytes.
func (f File) Size() int { return len(f.Data) }

// Config is the parameter set for one submission. It is built fresh for every
// submit and never mutated after it is handed to a controller.
type Config struct {
	// Params is the JSON body (or the scalar multipart fields) keyed by backend name.
	// Nested objects appear as map[string]any.
	Params map[string]any `json:"params"`
	// Files are multipart parts in upload order.
	Files []File `json:"files,omitempty"`
	// Labels maps a select field to the human label of its chosen option.
	Labels map[string]string `json:"labels,omitempty"`
}

// NewConfig returns an empty config ready for population.
func NewConfig() Config {
	return Config{Params: map[string]any{}, Labels: map[string]string{}}
}

// Set places value at a dotted path, creating intermediate objects.
func (c *Config) Set(path string, value any) {
	if c.Params == nil {
		c.Params = map[string]any{}
	}
	parts := strings.Split(path, ".")
	cur := c.Params
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Lookup returns the value at a dotted path.
func (c Config) Lookup(path string) (any, bool) {
	var cur any = c.Params
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// FirstFile returns the first uploaded file, if any.
func (c Config) FirstFile() (File, bool) {
	if len(c.Files) == 0 {
		return File{}, false
	}
	return c.Files[0], true
}

// UploadBytes sums the size of all files.
func (c Config) UploadBytes() int64 {
	var n int64
	for _, f := range c.Files {
		n += int64(f.Size())
	}
	return n
}
