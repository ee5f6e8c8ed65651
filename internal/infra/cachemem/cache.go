// Package cachemem is the in-process record cache.
package cachemem

import (
	"context"
	"sync"
	"time"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	record    domain.AttestationRecord
	expiresAt time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Cache {
	return &Cache{now: now, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Get(_ context.Context, key string) (*domain.AttestationRecord, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	rec := entry.record
	return &rec, true, nil
}

// Put stores rec under key. A non-positive ttl keeps the entry until it is
// deleted.
func (c *Cache) Put(_ context.Context, key string, rec domain.AttestationRecord, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{record: rec}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ usecase.RecordCache = (*Cache)(nil)
