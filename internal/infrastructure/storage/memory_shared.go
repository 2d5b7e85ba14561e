package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"NewsRadar/internal/ports"
)

type memoryEntry struct {
	value       string
	num         int64
	windowStart time.Time
	expiresAt   time.Time
}

// MemorySharedStore is an in-process SharedStore for tests and single-node
// deployments. All operations take one lock, so the check-and-increment
// semantics match the Postgres adapter.
type MemorySharedStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

var _ ports.SharedStore = (*MemorySharedStore)(nil)

// NewMemorySharedStore builds an empty store on the real clock.
func NewMemorySharedStore() *MemorySharedStore {
	return &MemorySharedStore{entries: map[string]*memoryEntry{}, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (m *MemorySharedStore) WithClock(now func() time.Time) *MemorySharedStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemorySharedStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		return "", false, nil
	}
	if entry.value != "" {
		return entry.value, true, nil
	}
	return strconv.FormatInt(entry.num, 10), true, nil
}

func (m *MemorySharedStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemorySharedStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live(key) != nil {
		return false, nil
	}
	m.entries[key] = &memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MemorySharedStore) Add(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		entry = &memoryEntry{expiresAt: m.expiry(ttl)}
		m.entries[key] = entry
	}
	if entry.value != "" {
		entry.num, _ = strconv.ParseInt(entry.value, 10, 64)
		entry.value = ""
	}
	entry.num += delta
	return entry.num, nil
}

func (m *MemorySharedStore) AddWithLimit(_ context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		if limit <= 0 {
			return 0, false, nil
		}
		m.entries[key] = &memoryEntry{num: 1, expiresAt: m.expiry(ttl)}
		return 1, true, nil
	}
	if entry.num >= limit {
		return entry.num, false, nil
	}
	entry.num++
	return entry.num, true, nil
}

func (m *MemorySharedStore) WindowAdd(_ context.Context, key string, limit int64, window time.Duration) (ports.WindowCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := m.live(key)
	if entry == nil || now.Sub(entry.windowStart) >= window {
		if limit <= 0 {
			return ports.WindowCount{WindowStart: now}, nil
		}
		entry = &memoryEntry{num: 1, windowStart: now, expiresAt: m.expiry(2 * window)}
		m.entries[key] = entry
		return ports.WindowCount{Count: 1, WindowStart: now, Allowed: true}, nil
	}

	if limit <= 0 {
		return ports.WindowCount{Count: entry.num, WindowStart: entry.windowStart}, nil
	}
	if entry.num >= limit {
		return ports.WindowCount{Count: entry.num, WindowStart: entry.windowStart}, nil
	}
	entry.num++
	return ports.WindowCount{Count: entry.num, WindowStart: entry.windowStart, Allowed: true}, nil
}

// live returns the entry when present and unexpired, reaping it otherwise.
func (m *MemorySharedStore) live(key string) *memoryEntry {
	entry, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return entry
}

func (m *MemorySharedStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
