package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*CatalogCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	return NewCatalogCache(NewClient(srv.Addr(), "", 0)), srv
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, hit, err := cache.Get(ctx); err != nil || hit {
		t.Fatalf("expected cold cache, hit=%v err=%v", hit, err)
	}

	payload := []byte(`[{"id":"b1"}]`)
	if err := cache.Set(ctx, payload, time.Minute); err != nil {
		t.Fatalf("set catalog cache: %v", err)
	}

	got, hit, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("get catalog cache: %v", err)
	}
	if !hit || string(got) != string(payload) {
		t.Fatalf("unexpected cache read: hit=%v payload=%s", hit, got)
	}
}

func TestCatalogCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set catalog cache: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate catalog cache: %v", err)
	}

	if _, hit, err := cache.Get(ctx); err != nil || hit {
		t.Fatalf("expected cache miss after invalidate, hit=%v err=%v", hit, err)
	}
}

func TestCatalogCacheExpires(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, []byte(`[]`), time.Second); err != nil {
		t.Fatalf("set catalog cache: %v", err)
	}

	srv.FastForward(2 * time.Second)

	if _, hit, err := cache.Get(ctx); err != nil || hit {
		t.Fatalf("expected cache miss after ttl, hit=%v err=%v", hit, err)
	}
}

func TestCatalogCacheNilClientIsNoop(t *testing.T) {
	var cache *CatalogCache
	ctx := context.Background()

	if _, hit, err := cache.Get(ctx); err != nil || hit {
		t.Fatalf("nil cache must be a silent miss, hit=%v err=%v", hit, err)
	}
	if err := cache.Set(ctx, []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("nil cache set must be a no-op: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("nil cache invalidate must be a no-op: %v", err)
	}
}
