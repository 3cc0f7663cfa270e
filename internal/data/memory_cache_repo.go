package data

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skilldeck/skilldeck/internal/core"
)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryCacheRepo is a process-local core.CacheRepository for single-instance
// deployments and tests. Expired entries are invisible to readers and are
// reclaimed by Sweep.
type MemoryCacheRepo struct {
	mu           sync.Mutex
	entries      map[string]memoryEntry
	timeProvider TimeProvider
}

var _ core.CacheRepository = (*MemoryCacheRepo)(nil)

// NewMemoryCacheRepo creates an empty store. A nil TimeProvider uses the wall clock.
func NewMemoryCacheRepo(tp TimeProvider) *MemoryCacheRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryCacheRepo{entries: make(map[string]memoryEntry), timeProvider: tp}
}

func (m *MemoryCacheRepo) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.timeProvider.Now().Add(ttl)
}

// lookup returns the live entry for key. Callers hold mu.
func (m *MemoryCacheRepo) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.timeProvider.Now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryCacheRepo) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrKeyRequired
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: buf, expires: m.deadline(ttl)}
	return nil
}

func (m *MemoryCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryCacheRepo) Take(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return nil, nil
	}
	delete(m.entries, key)
	return e.value, nil
}

func (m *MemoryCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	delete(m.entries, key)
	return ok, nil
}

func (m *MemoryCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryCacheRepo) SetTTL(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return false, nil
	}
	e.expires = m.deadline(ttl)
	m.entries[key] = e
	return true, nil
}

// SetIfNotExists mirrors the Redis repo, including the one second TTL floor.
func (m *MemoryCacheRepo) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: buf, expires: m.deadline(ttl)}
	return true, nil
}

func (m *MemoryCacheRepo) DeleteIfValue(_ context.Context, key string, value []byte) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *MemoryCacheRepo) Health(context.Context) error { return nil }

// Len reports the number of stored entries, expired or not.
func (m *MemoryCacheRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryCacheRepo) Sweep(_ context.Context) (int, error) {
	now := m.timeProvider.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (m *MemoryCacheRepo) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, _ := m.Sweep(ctx); n > 0 {
				logger.DebugContext(ctx, "swept expired cache entries", "count", n)
			}
		}
	}
}
