// Package assets versions static asset URLs with a content hash so the
// browser can cache them for a year.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
)

const hashLength = 8

// AssetResolver maps a logical asset name (css/app.css) to its versioned URL
// (/static/css/app.css?v=1a2b3c4d).
type AssetResolver struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu     sync.RWMutex
	hashes map[string]string
}

// NewAssetResolver creates a resolver over the static filesystem. In dev
// mode hashes are recomputed on every call so edits show up immediately.
func NewAssetResolver(fsys fs.FS, devMode bool, logger *slog.Logger) *AssetResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetResolver{fsys: fsys, devMode: devMode, logger: logger, hashes: map[string]string{}}
}

// Resolve returns the URL for a logical asset name. Unknown assets resolve
// to their unversioned path.
func (ar *AssetResolver) Resolve(logicalName string) string {
	name := strings.TrimPrefix(logicalName, "/")
	base := "/static/" + name
	if ar == nil || ar.fsys == nil {
		return base
	}
	if v := ar.version(name); v != "" {
		return base + "?v=" + v
	}
	return base
}

// IsVersioned reports whether a request for path carries a content hash.
func IsVersioned(rawQuery string) bool {
	v, ok := strings.CutPrefix(rawQuery, "v=")
	return ok && len(v) == hashLength
}

func (ar *AssetResolver) version(name string) string {
	if !ar.devMode {
		ar.mu.RLock()
		v, ok := ar.hashes[name]
		ar.mu.RUnlock()
		if ok {
			return v
		}
	}

	b, err := fs.ReadFile(ar.fsys, name)
	if err != nil {
		ar.logger.Warn("asset not found", slog.String("asset", name), slog.Any("error", err))
		return ""
	}
	sum := sha256.Sum256(b)
	v := hex.EncodeToString(sum[:])[:hashLength]

	if !ar.devMode {
		ar.mu.Lock()
		ar.hashes[name] = v
		ar.mu.Unlock()
	}
	return v
}
