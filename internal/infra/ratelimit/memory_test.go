package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "owner-1", 2, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: %+v %v", i, d, err)
		}
	}
	d, _ := l.Allow(ctx, "owner-1", 2, time.Minute)
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected third request to be limited, got %+v", d)
	}
	if other, _ := l.Allow(ctx, "owner-2", 2, time.Minute); !other.Allowed {
		t.Fatalf("keys must not share a window")
	}

	now = now.Add(time.Minute + time.Second)
	if d, _ := l.Allow(ctx, "owner-1", 2, time.Minute); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

func TestMemoryLimiterCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }, MaxKeys: 1})
	ctx := context.Background()
	if _, err := l.Allow(ctx, "a", 1, time.Second); err != nil {
		t.Fatalf("allow a: %v", err)
	}
	if _, err := l.Allow(ctx, "b", 1, time.Second); err == nil {
		t.Fatalf("expected capacity error")
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Allow(ctx, "b", 1, time.Second); err != nil {
		t.Fatalf("expected expired key to be swept: %v", err)
	}
}

func TestMemoryLimiterDisabled(t *testing.T) {
	l := NewMemoryLimiter(MemoryLimiterConfig{})
	if d, err := l.Allow(context.Background(), "k", 0, time.Second); err != nil || !d.Allowed {
		t.Fatalf("zero limit disables limiting: %+v %v", d, err)
	}
}
