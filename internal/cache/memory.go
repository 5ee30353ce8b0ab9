package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

type memoryEntry struct {
	set       *models.IndicatorSet
	expiresAt time.Time
}

// Memory is an in-process cache with per-entry expiry
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   models.Clock
}

// NewMemory creates an empty cache
func NewMemory(clock models.Clock) *Memory {
	if clock == nil {
		clock = models.SystemClock{}
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get returns a copy of a live entry
func (m *Memory) Get(_ context.Context, key string) (*models.IndicatorSet, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		m.mu.Lock()
		// Set may have stored a fresh value since the read
		if cur, ok := m.entries[key]; ok && m.expired(cur) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	return e.set.Clone(), true, nil
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.clock.Now().Before(e.expiresAt)
}

// Set stores a copy of set. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, set *models.IndicatorSet, ttl time.Duration) error {
	e := memoryEntry{set: set.Clone()}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, including expired ones not yet evicted
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
