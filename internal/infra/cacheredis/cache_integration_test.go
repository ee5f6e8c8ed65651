//go:build integration

package cacheredis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"guardians/internal/domain"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cache, err := New(Options{Addr: addr, Prefix: "guardians-it:"})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	k := uuid.NewString()

	rec := domain.AttestationRecord{ContentFingerprint: "cid-A", Title: "Cached", CreatedAt: time.Unix(1700000000, 0).UTC()}
	if err := cache.Put(ctx, k, rec, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(ctx, k)
	if err != nil || !ok || got.Title != "Cached" {
		t.Fatalf("get = %+v %v %v", got, ok, err)
	}
	if err := cache.Delete(ctx, k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := cache.Get(ctx, k); err != nil || ok {
		t.Fatalf("expected miss after delete, ok=%v err=%v", ok, err)
	}
}
