// Package core defines the ports shared by the skilldeck services and the
// adapters that implement them.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CacheRepository defines the interface for caching operations.
// The core defines the interface and the data layer provides implementations
// (Redis for shared deployments, in-memory for a single process).
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take atomically retrieves and removes a value.
	// Returns nil if the key doesn't exist or has expired.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key.
	// Returns true if the key exists and TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfValue atomically removes key only while it still holds value.
	// Returns true if the key was deleted.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// Keyspace namespaces cache keys, e.g. "skilldeck:" + "download:" + token.
type Keyspace string

// Key joins parts below the keyspace prefix.
func (k Keyspace) Key(parts ...string) string {
	return string(k) + strings.Join(parts, ":")
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, cache CacheRepository, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return cache.Set(ctx, key, b, ttl)
}

// GetJSON decodes the value under key into dst. It reports false on a miss.
func GetJSON(ctx context.Context, cache CacheRepository, key string, dst any) (bool, error) {
	b, err := cache.Get(ctx, key)
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// TakeJSON is GetJSON with delete-on-read semantics.
func TakeJSON(ctx context.Context, cache CacheRepository, key string, dst any) (bool, error) {
	b, err := cache.Take(ctx, key)
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
