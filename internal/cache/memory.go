// Package cache provides the answer-cache backends used by the retrieval
// optimizer: a bounded in-memory TTL cache and a Redis-backed one.
package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	timestamp time.Time
}

// Memory is a bounded in-memory TTL cache. Expired entries are purged and,
// when still over capacity, the oldest entry is evicted eagerly on write.
type Memory struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration, capacity int) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if m.now().Sub(entry.timestamp) >= m.ttl {
		return "", false
	}
	return entry.value, true
}

func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if now.Sub(e.timestamp) >= m.ttl {
			delete(m.entries, k)
		}
	}
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}
	m.entries[key] = memoryEntry{value: value, timestamp: now}
}

func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range m.entries {
		if first || e.timestamp.Before(oldest) {
			oldestKey, oldest = k, e.timestamp
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

// SetClock replaces the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Len reports the number of stored entries, live or expired.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
