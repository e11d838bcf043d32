package ratelimit

import (
	"context"
	"sync"
	"time"

	"job-ingest/internal/infrastructure/cache"
)

// WindowStore records a hit for key at now and returns how many hits fall
// inside the trailing window, the new one included.
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

// MemoryStore keeps sliding windows in process memory. Windows are created
// on first hit and removed by Sweep once idle.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := prune(s.windows[key], now.Add(-window))
	hits = append(hits, now)
	s.windows[key] = hits
	return len(hits), nil
}

// Sweep drops every window with no hit newer than now-window and reports how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := now.Add(-window)
	for key, hits := range s.windows {
		hits = prune(hits, cutoff)
		if len(hits) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = hits
	}
	return removed
}

// RunJanitor sweeps on every tick until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval, window time.Duration) {
	if interval <= 0 {
		interval = window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now, window)
		}
	}
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// prune keeps hits strictly after cutoff. Hits are appended in order so the
// slice is sorted.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	out := make([]time.Time, len(hits)-i)
	copy(out, hits[i:])
	return out
}

// RedisStore shares windows between instances through sorted sets.
type RedisStore struct {
	redis  *cache.Redis
	prefix string
}

func NewRedisStore(r *cache.Redis, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{redis: r, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	return s.redis.HitWindow(ctx, s.prefix+key, now, window)
}

var (
	_ WindowStore = (*MemoryStore)(nil)
	_ WindowStore = (*RedisStore)(nil)
)
