package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// DownloadPrefix is the route that serves download tokens.
const DownloadPrefix = "/downloads/"

// storedBlob is the cache encoding of a blob; job.Blob hides Data from JSON.
type storedBlob struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// DownloadStore parks generated files under single-use tokens until the
// browser fetches them.
type DownloadStore struct {
	cache core.CacheRepository
	ks    core.Keyspace
	ttl   time.Duration
}

// NewDownloadStore creates a store whose tokens expire after ttl.
func NewDownloadStore(cache core.CacheRepository, prefix string, ttl time.Duration) *DownloadStore {
	if cache == nil {
		panic("DownloadStore requires a cache")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DownloadStore{cache: cache, ks: core.Keyspace(prefix + "download:"), ttl: ttl}
}

// Put stores blob under a new token.
func (d *DownloadStore) Put(ctx context.Context, blob *job.Blob) (string, error) {
	if blob == nil {
		return "", apperrors.Validation("no file to store")
	}
	token := uuid.NewString()
	err := core.SetJSON(ctx, d.cache, d.ks.Key(token), storedBlob{
		Filename:    blob.Filename,
		ContentType: blob.ContentType,
		Data:        blob.Data,
	}, d.ttl)
	if err != nil {
		return "", fmt.Errorf("store download: %w", err)
	}
	return token, nil
}

// Take returns the blob for token and forgets it. Unknown, expired and
// already-taken tokens are NotFound.
func (d *DownloadStore) Take(ctx context.Context, token string) (*job.Blob, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, apperrors.NotFound("download not found")
	}
	var sb storedBlob
	ok, err := core.TakeJSON(ctx, d.cache, d.ks.Key(token), &sb)
	if err != nil {
		return nil, fmt.Errorf("take download: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFound("download not found or already used")
	}
	return &job.Blob{Filename: sb.Filename, ContentType: sb.ContentType, Data: sb.Data}, nil
}

// URL returns the path serving token.
func (d *DownloadStore) URL(token string) string { return DownloadPrefix + token }
