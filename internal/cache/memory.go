package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1000

type entry struct {
	payload   []byte
	writtenAt time.Time
}

// Memory is a bounded in-process cache. When full, the oldest write is evicted.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a cache. Non-positive ttl and maxEntries select the defaults.
func NewMemory(ttl time.Duration, maxEntries int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	m := &Memory{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		return nil, false, nil
	}

	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.pruneLocked()
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.entries[key] = entry{payload: stored, writtenAt: m.now()}
	return nil
}

// Len counts live entries, dropping expired ones on the way.
func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()
	return len(m.entries), nil
}

func (m *Memory) expired(e entry) bool {
	return m.now().Sub(e.writtenAt) >= m.ttl
}

func (m *Memory) pruneLocked() {
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range m.entries {
		if !found || e.writtenAt.Before(oldest) {
			oldestKey, oldest, found = k, e.writtenAt, true
		}
	}
	if found {
		delete(m.entries, oldestKey)
	}
}
