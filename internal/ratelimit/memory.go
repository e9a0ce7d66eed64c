package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a sliding-window CounterStore backed by per-key hit
// timestamps. Suitable for single-instance deployments; the limit holds
// over any trailing window because expired hits are pruned on access.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.hits[key][:0]
	for _, t := range s.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.hits[key] = kept

	return int64(len(kept)), nil
}

// Cleanup drops keys whose newest hit is older than maxIdle.
func (s *MemoryStore) Cleanup(maxIdle time.Duration) {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, hits := range s.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(s.hits, key)
		}
	}
}

// StartJanitor prunes idle keys every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, every, maxIdle time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(maxIdle)
			}
		}
	}()
}
