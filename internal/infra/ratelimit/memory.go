// Package ratelimit provides fixed-window limiters for the write endpoints.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"guardians/internal/domain"
)

const defaultMaxKeys = 10000

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	maxKeys int
	windows map[string]*window
}

type window struct {
	count int
	ends  time.Time
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	return &memoryLimiter{now: cfg.Now, maxKeys: cfg.MaxKeys, windows: make(map[string]*window)}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.ends) {
		if !ok && len(m.windows) >= m.maxKeys {
			m.sweep(now)
			if len(m.windows) >= m.maxKeys {
				return domain.RateLimitDecision{}, errors.New("rate limiter capacity exceeded")
			}
		}
		w = &window{ends: now.Add(span)}
		m.windows[key] = w
	}
	if w.count >= limit {
		return domain.RateLimitDecision{Allowed: false, Limit: limit, ResetAt: w.ends}, nil
	}
	w.count++
	return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.ends}, nil
}

func (m *memoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.ends) {
			delete(m.windows, key)
		}
	}
}
