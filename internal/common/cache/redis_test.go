package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCacheKeyOps(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}

	// Missing key returns empty string, not an error.
	got, err = cache.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if got != "" {
		t.Fatalf("Get missing = %q, want empty", got)
	}

	n, err := cache.Exists(ctx, "k", "missing")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if n != 1 {
		t.Fatalf("Exists = %d, want 1", n)
	}

	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key should be gone after Del")
	}
}

func TestRedisCacheSetOps(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.SAdd(ctx, "solved:1", "42", "43"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	ok, err := cache.SIsMember(ctx, "solved:1", "42")
	if err != nil {
		t.Fatalf("SIsMember: %v", err)
	}
	if !ok {
		t.Fatal("42 should be a member")
	}
	ok, err = cache.SIsMember(ctx, "solved:1", "99")
	if err != nil {
		t.Fatalf("SIsMember: %v", err)
	}
	if ok {
		t.Fatal("99 should not be a member")
	}
}

func TestRedisCacheLock(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.TryLock(ctx, "lock:sweep", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("first TryLock should succeed")
	}
	ok, err = cache.TryLock(ctx, "lock:sweep", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("second TryLock should fail while held")
	}
	if err := cache.Unlock(ctx, "lock:sweep"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = cache.TryLock(ctx, "lock:sweep", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("TryLock after Unlock should succeed")
	}

	// Expiry releases the lock.
	mr.FastForward(2 * time.Minute)
	ok, err = cache.TryLock(ctx, "lock:sweep", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("TryLock after TTL expiry should succeed")
	}
}

type cachedThing struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestGetWithCached(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (*cachedThing, error) {
		calls++
		return &cachedThing{ID: 7, Name: "two-sum"}, nil
	}
	isEmpty := func(v *cachedThing) bool { return v == nil }
	marshal := func(v *cachedThing) string {
		data, _ := json.Marshal(v)
		return string(data)
	}
	unmarshal := func(data string) (*cachedThing, error) {
		var v cachedThing
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, err
		}
		return &v, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetWithCached(ctx, cache, "thing:7", time.Minute, 10*time.Second,
			isEmpty, marshal, unmarshal, fetch)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got == nil || got.ID != 7 || got.Name != "two-sum" {
			t.Fatalf("GetWithCached = %+v", got)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestGetWithCachedNullValue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (*cachedThing, error) {
		calls++
		return nil, nil
	}
	isEmpty := func(v *cachedThing) bool { return v == nil }
	marshal := func(v *cachedThing) string { return "" }
	unmarshal := func(data string) (*cachedThing, error) { return nil, nil }

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, cache, "thing:missing", time.Minute, 10*time.Second,
			isEmpty, marshal, unmarshal, fetch)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got != nil {
			t.Fatalf("GetWithCached = %+v, want nil", got)
		}
	}
	// The null sentinel absorbs the second read.
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestJitterTTL(t *testing.T) {
	base := 10 * time.Minute
	for i := 0; i < 100; i++ {
		got := JitterTTL(base)
		if got > base || got < base-base/10 {
			t.Fatalf("JitterTTL = %v, want within [%v, %v]", got, base-base/10, base)
		}
	}
	if got := JitterTTL(0); got != 0 {
		t.Fatalf("JitterTTL(0) = %v, want 0", got)
	}
}
