package storage

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	payload []byte
	expires time.Time
}

type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory keeps hand-offs in process memory.
func NewMemory(opts Options) *Handoff {
	return newHandoff(&memoryBackend{entries: map[string]memEntry{}, now: time.Now}, opts, nil)
}

func (m *memoryBackend) name() string { return "memory" }

func (m *memoryBackend) insert(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !m.expired(e) {
		return exists(key)
	}
	e := memEntry{payload: append([]byte(nil), payload...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *memoryBackend) lookup(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		return nil, notFound(key)
	}
	return e.payload, nil
}

func (m *memoryBackend) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}
