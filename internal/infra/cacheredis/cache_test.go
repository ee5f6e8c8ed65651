package cacheredis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"guardians/internal/domain"
)

// fakeRedis implements the three commands the cache issues.
type fakeRedis struct {
	redis.Cmdable
	data map[string][]byte
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttl: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.data[key]; {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(string(v))
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = value.([]byte)
	f.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestCacheRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	c := NewWithClient(fake, "")
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.AttestationRecord{ContentFingerprint: "cid-A", Title: "Sunset", CreatedAt: created}

	if err := c.Put(ctx, "addr", rec, 30*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	if fake.ttl[defaultPrefix+"addr"] != 30*time.Second {
		t.Fatalf("expected ttl to be passed through")
	}
	got, ok, err := c.Get(ctx, "addr")
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if got.Title != "Sunset" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := c.Delete(ctx, "addr"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "addr"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	fake := newFakeRedis()
	fake.data["p:addr"] = []byte("{not json")
	c := NewWithClient(fake, "p:")
	_, ok, err := c.Get(context.Background(), "addr")
	if ok || err != nil {
		t.Fatalf("expected silent miss, got %v %v", ok, err)
	}
}

func TestCacheSurfacesRedisErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	c := NewWithClient(fake, "")
	if _, _, err := c.Get(context.Background(), "addr"); err == nil {
		t.Fatalf("expected get error")
	}
	if err := c.Put(context.Background(), "addr", domain.AttestationRecord{}, time.Second); err == nil {
		t.Fatalf("expected set error")
	}
}

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}
