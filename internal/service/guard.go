package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skilldeck/skilldeck/internal/core"
)

// Lease is a held in-flight marker. Release it exactly once.
type Lease struct {
	key   string
	owner []byte
}

// InflightGuard serializes work per key across every process sharing the
// cache. It is backed by SetIfNotExists, so it is a mutex map when the cache
// is in memory and SET NX PX when it is Redis.
type InflightGuard struct {
	cache core.CacheRepository
	ks    core.Keyspace
}

// NewInflightGuard creates a guard writing keys below prefix.
func NewInflightGuard(cache core.CacheRepository, prefix string) *InflightGuard {
	if cache == nil {
		panic("InflightGuard requires a cache")
	}
	return &InflightGuard{cache: cache, ks: core.Keyspace(prefix + "inflight:")}
}

// Acquire takes key for at most ttl. It reports nil, nil when someone else
// holds it.
func (g *InflightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if key == "" {
		return nil, errors.New("guard key is required")
	}
	l := &Lease{key: g.ks.Key(key), owner: []byte(uuid.NewString())}
	ok, err := g.cache.SetIfNotExists(ctx, l.key, l.owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return l, nil
}

// Release drops the marker if it still belongs to l. A lease that outlived
// its TTL and was taken over by another holder is left alone.
func (g *InflightGuard) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	if _, err := g.cache.DeleteIfValue(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

// Held reports whether key is currently taken.
func (g *InflightGuard) Held(ctx context.Context, key string) (bool, error) {
	return g.cache.Exists(ctx, g.ks.Key(key))
}
